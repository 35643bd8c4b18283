package downloader

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/JanTvrdik/kos-api/pkg/cache"
	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/pagination"
	"github.com/JanTvrdik/kos-api/pkg/retry"
)

// Prometheus metrics for the scheduler.
var (
	kosAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kos_attempts_total",
		Help: "Total resolved page attempts by outcome",
	}, []string{"outcome"})

	kosInflightRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kos_inflight_requests",
		Help: "Number of fetches currently awaiting a response",
	})
)

// Downloader schedules page attempts, keeps at most MaxConnections of them
// in flight and follows pagination until every submitted resource is done.
//
// Page cursors, the retry ledger, the queue and cache writes are only touched
// from the goroutine running Run (or, before Run, the goroutine calling
// Submit). Only transport fetches run concurrently.
type Downloader struct {
	cfg        Config
	transport  Transport
	store      cache.Store
	engine     *pagination.Engine
	ledger     *retry.Ledger
	classifier *Classifier
	logger     zerolog.Logger

	queue    []*pagination.PendingAttempt
	inFlight int
	stats    Stats
}

// completion carries a finished fetch back to the control goroutine.
type completion struct {
	attempt *pagination.PendingAttempt
	resp    *client.Response
	err     error
}

// New creates a downloader. A nil store disables caching.
func New(cfg Config, transport Transport, store cache.Store, logger zerolog.Logger) (*Downloader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if store == nil {
		store = cache.Disabled{}
	}

	logger = logger.With().Str("component", "downloader").Logger()
	ledger := retry.NewLedger(cfg.MaxRetries)

	return &Downloader{
		cfg:        cfg,
		transport:  transport,
		store:      store,
		engine:     pagination.NewEngine(cfg.BaseURL, cfg.Semester),
		ledger:     ledger,
		classifier: NewClassifier(ledger, logger),
		logger:     logger,
	}, nil
}

// Submit schedules the next page of req. It may be called before Run or
// from a Handler during Run, never from another goroutine while Run is active.
func (d *Downloader) Submit(req *ResourceRequest) {
	att := d.engine.BuildAttempt(req.Resource, req.Params, req)
	d.enqueue(att)
}

func (d *Downloader) enqueue(att *pagination.PendingAttempt) {
	d.queue = append(d.queue, att)
	d.logger.Debug().
		Str("resource", att.Resource).
		Int("page", att.Page).
		Int("attempt", att.Attempt).
		Str("url", att.URL).
		Msg("Scheduled fetch")
}

// Run drains the queue, including everything submitted while it runs.
// It returns nil once nothing is queued or in flight, the first fatal error,
// or ctx.Err() when ctx is cancelled. Fetches still in flight when Run
// returns are cancelled.
func (d *Downloader) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := d.logger.With().Str("run_id", runID).Logger()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan completion)
	defer func() {
		kosInflightRequests.Sub(float64(d.inFlight))
		d.inFlight = 0
	}()

	logger.Info().Int("queued", len(d.queue)).Int("max_connections", d.cfg.MaxConnections).Msg("Download started")

	for {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Msg("Download cancelled")
			return err
		}

		for len(d.queue) > 0 && d.inFlight < d.cfg.MaxConnections {
			att := d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]

			if body, ok := d.store.Lookup(runCtx, att.URL); ok {
				d.stats.Cached++
				out := Outcome{
					Response:  &client.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: body},
					FromCache: true,
				}
				if err := d.resolve(runCtx, att, out); err != nil {
					logger.Error().Err(err).Msg("Download aborted")
					return err
				}
				continue
			}

			d.issue(runCtx, att, done)
		}

		if d.inFlight == 0 && len(d.queue) == 0 {
			logger.Info().
				Int("issued", d.stats.Issued).
				Int("cached", d.stats.Cached).
				Int("accepted", d.stats.Accepted).
				Int("abandoned", d.stats.Abandoned).
				Msg("Download finished")
			return nil
		}

		select {
		case <-ctx.Done():
			logger.Warn().Err(ctx.Err()).Msg("Download cancelled")
			return ctx.Err()

		case c := <-done:
			d.inFlight--
			kosInflightRequests.Dec()

			if c.err != nil && ctx.Err() != nil {
				return ctx.Err()
			}

			out := Outcome{Response: c.resp, Err: c.err}
			if err := d.resolve(runCtx, c.attempt, out); err != nil {
				logger.Error().Err(err).Msg("Download aborted")
				return err
			}
		}
	}
}

// issue starts a fetch on its own goroutine.
func (d *Downloader) issue(ctx context.Context, att *pagination.PendingAttempt, done chan<- completion) {
	d.inFlight++
	d.stats.Issued++
	if d.inFlight > d.stats.PeakInFlight {
		d.stats.PeakInFlight = d.inFlight
	}
	kosInflightRequests.Inc()

	go func() {
		resp, err := d.transport.Fetch(ctx, att.URL)
		select {
		case done <- completion{attempt: att, resp: resp, err: err}:
		case <-ctx.Done():
		}
	}()
}

// resolve classifies an outcome and applies the verdict. It returns an error
// only for fatal verdicts.
func (d *Downloader) resolve(ctx context.Context, att *pagination.PendingAttempt, out Outcome) error {
	verdict := d.classifier.Classify(att, out)
	kosAttemptsTotal.WithLabelValues(verdict.Action.String()).Inc()

	switch verdict.Action {
	case ActionRetry:
		d.stats.Retried++
		d.enqueue(att.Retry())
		return nil

	case ActionAbandon:
		d.stats.Abandoned++
		return nil

	case ActionFatal:
		return fmt.Errorf("fetch %s page %d: %w", att.Resource, att.Page, verdict.Err)
	}

	d.stats.Accepted++
	d.logger.Debug().
		Str("resource", att.Resource).
		Int("page", att.Page).
		Bool("from_cache", out.FromCache).
		Msg("Completed fetch")

	if !out.FromCache {
		d.store.Store(ctx, att.URL, out.Response.Body)
	}

	req, _ := att.Request.(*ResourceRequest)
	if req == nil {
		return nil
	}
	if d.engine.HasNext(verdict.Doc) {
		d.Submit(req)
	}
	if req.Handler != nil {
		req.Handler(verdict.Doc, req, att.Page)
	}
	return nil
}

// Stats returns the attempt counters accumulated so far.
func (d *Downloader) Stats() Stats {
	return d.stats
}

// Pending returns the number of queued attempts.
func (d *Downloader) Pending() int {
	return len(d.queue)
}
