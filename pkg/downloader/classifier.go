package downloader

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/feed"
	"github.com/JanTvrdik/kos-api/pkg/pagination"
	"github.com/JanTvrdik/kos-api/pkg/retry"
)

// Action is the decision taken for a resolved attempt.
type Action int

const (
	// ActionAccept delivers the page.
	ActionAccept Action = iota

	// ActionRetry schedules the same page again.
	ActionRetry

	// ActionAbandon drops the page without failing the run.
	ActionAbandon

	// ActionFatal aborts the run.
	ActionFatal
)

// String returns the metric label of the action.
func (a Action) String() string {
	switch a {
	case ActionAccept:
		return "accepted"
	case ActionRetry:
		return "retried"
	case ActionAbandon:
		return "abandoned"
	case ActionFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is what an attempt resolved to: a response, a transport error, or
// a body read from the cache.
type Outcome struct {
	Response  *client.Response
	Err       error
	FromCache bool
}

// Verdict is the classification of an Outcome.
type Verdict struct {
	Action Action

	// Doc is set for ActionAccept.
	Doc *feed.Document

	// Err explains a retry, abandonment or fatal verdict.
	Err error
}

// Classifier turns attempt outcomes into verdicts, charging failures to the
// retry ledger. It performs no other side effects.
type Classifier struct {
	ledger *retry.Ledger
	logger zerolog.Logger
}

// NewClassifier creates a classifier backed by ledger.
func NewClassifier(ledger *retry.Ledger, logger zerolog.Logger) *Classifier {
	return &Classifier{
		ledger: ledger,
		logger: logger,
	}
}

// Classify decides what happens to att given its outcome:
//   - a transport error is fatal and never retried
//   - a non-2xx status is retried while the ledger allows, then abandoned
//   - an unparsable body is retried while the ledger allows, then fatal
//   - anything else is accepted
func (c *Classifier) Classify(att *pagination.PendingAttempt, out Outcome) Verdict {
	if out.Err != nil || out.Response == nil {
		return Verdict{Action: ActionFatal, Err: transportError(att.URL, out.Err)}
	}

	log := c.logger.With().
		Str("resource", att.Resource).
		Int("page", att.Page).
		Int("attempt", att.Attempt).
		Str("url", att.URL).
		Logger()

	resp := out.Response
	if !resp.OK() {
		statusErr := &client.HTTPStatusError{
			URL:        att.URL,
			StatusCode: resp.StatusCode,
			Message:    resp.Status,
		}
		return c.failed(att, log.With().Int("status", resp.StatusCode).Logger(), statusErr)
	}

	doc, err := feed.Parse(resp.Body)
	if err != nil {
		malformedErr := &client.MalformedPayloadError{URL: att.URL, Err: err}
		return c.failed(att, log.With().Bool("from_cache", out.FromCache).Logger(), malformedErr)
	}

	return Verdict{Action: ActionAccept, Doc: doc}
}

// failed charges a failed attempt to the ledger. Once the budget of the URL is
// spent, the error class decides between abandoning the page and aborting.
func (c *Classifier) failed(att *pagination.PendingAttempt, log zerolog.Logger, err error) Verdict {
	if c.ledger.ShouldRetry(att.URL) {
		log.Warn().Err(err).Msg("Attempt failed, retrying")
		return Verdict{Action: ActionRetry, Err: err}
	}

	if client.IsFatal(client.Classify(err)) {
		log.Error().Err(err).Msg("Retry attempts exhausted, giving up")
		return Verdict{
			Action: ActionFatal,
			Err:    fmt.Errorf("%w after %d attempts: %w", client.ErrRetryExhausted, att.Attempt, err),
		}
	}

	log.Warn().Err(err).Msg("Retry attempts exhausted, abandoning page")
	return Verdict{Action: ActionAbandon, Err: err}
}

func transportError(url string, err error) error {
	if err == nil {
		err = errors.New("no response")
	}
	var transportErr *client.TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &client.TransportError{URL: url, Err: err}
}
