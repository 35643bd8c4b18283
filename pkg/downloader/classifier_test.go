package downloader

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/JanTvrdik/kos-api/internal/testutil"
	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/pagination"
	"github.com/JanTvrdik/kos-api/pkg/retry"
)

func testAttempt() *pagination.PendingAttempt {
	return pagination.NewEngine("https://kos.example.com/api/3", "B232").
		BuildAttempt("courses", map[string]string{"limit": "2"}, nil)
}

func TestClassifier_Classify(t *testing.T) {
	validFeed := testutil.AtomFeed("courses", []string{"BI-PA1"}, "")

	tests := []struct {
		name       string
		outcome    Outcome
		wantAction Action
		wantClass  client.ErrorClass
	}{
		{
			name:       "accepted feed",
			outcome:    Outcome{Response: &client.Response{StatusCode: http.StatusOK, Body: []byte(validFeed)}},
			wantAction: ActionAccept,
		},
		{
			name:       "accepted from cache",
			outcome:    Outcome{Response: &client.Response{StatusCode: http.StatusOK, Body: []byte(validFeed)}, FromCache: true},
			wantAction: ActionAccept,
		},
		{
			name:       "transport error",
			outcome:    Outcome{Err: errors.New("connection refused")},
			wantAction: ActionFatal,
			wantClass:  client.ErrorClassNetwork,
		},
		{
			name:       "missing response",
			outcome:    Outcome{},
			wantAction: ActionFatal,
			wantClass:  client.ErrorClassNetwork,
		},
		{
			name:       "server error",
			outcome:    Outcome{Response: &client.Response{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error"}},
			wantAction: ActionRetry,
			wantClass:  client.ErrorClassStatus,
		},
		{
			name:       "malformed body",
			outcome:    Outcome{Response: &client.Response{StatusCode: http.StatusOK, Body: []byte("Service Unavailable")}},
			wantAction: ActionRetry,
			wantClass:  client.ErrorClassMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(retry.NewLedger(retry.MaxRetries), zerolog.Nop())

			v := c.Classify(testAttempt(), tt.outcome)
			if v.Action != tt.wantAction {
				t.Fatalf("Action = %v, want %v", v.Action, tt.wantAction)
			}
			if tt.wantAction == ActionAccept {
				if v.Doc == nil || v.Err != nil {
					t.Errorf("accepted verdict = %+v, want document and no error", v)
				}
				return
			}
			if got := client.Classify(v.Err); got != tt.wantClass {
				t.Errorf("error class = %q, want %q (err: %v)", got, tt.wantClass, v.Err)
			}
		})
	}
}

func TestClassifier_StatusExhaustionAbandons(t *testing.T) {
	ledger := retry.NewLedger(retry.MaxRetries)
	c := NewClassifier(ledger, zerolog.Nop())
	att := testAttempt()
	out := Outcome{Response: &client.Response{StatusCode: http.StatusServiceUnavailable}}

	want := []Action{ActionRetry, ActionRetry, ActionAbandon}
	var v Verdict
	for i, w := range want {
		v = c.Classify(att, out)
		if v.Action != w {
			t.Errorf("attempt %d: Action = %v, want %v", i+1, v.Action, w)
		}
		att = att.Retry()
	}

	if client.IsFatal(client.Classify(v.Err)) {
		t.Errorf("abandoned verdict carries a fatal error class: %v", v.Err)
	}
	if errors.Is(v.Err, client.ErrRetryExhausted) {
		t.Errorf("abandoned verdict error %v wraps ErrRetryExhausted", v.Err)
	}

	if got := ledger.Count(att.URL); got != 3 {
		t.Errorf("ledger count = %d, want 3", got)
	}
}

func TestClassifier_MalformedExhaustionIsFatal(t *testing.T) {
	c := NewClassifier(retry.NewLedger(retry.MaxRetries), zerolog.Nop())
	att := testAttempt()
	out := Outcome{Response: &client.Response{StatusCode: http.StatusOK, Body: []byte("<html>")}}

	var v Verdict
	for i := 0; i < retry.MaxRetries; i++ {
		v = c.Classify(att, out)
		att = att.Retry()
	}

	if v.Action != ActionFatal {
		t.Fatalf("Action = %v, want fatal", v.Action)
	}
	if !errors.Is(v.Err, client.ErrRetryExhausted) {
		t.Errorf("error %v does not wrap ErrRetryExhausted", v.Err)
	}
	if !client.IsFatal(client.Classify(v.Err)) {
		t.Errorf("fatal verdict error %v has a non-fatal class", v.Err)
	}
	var malformedErr *client.MalformedPayloadError
	if !errors.As(v.Err, &malformedErr) {
		t.Errorf("error %v is not a MalformedPayloadError", v.Err)
	}
}

func TestClassifier_TransportErrorNotCharged(t *testing.T) {
	ledger := retry.NewLedger(retry.MaxRetries)
	c := NewClassifier(ledger, zerolog.Nop())
	att := testAttempt()

	wrapped := &client.TransportError{URL: att.URL, Err: errors.New("timeout")}
	v := c.Classify(att, Outcome{Err: wrapped})

	if v.Action != ActionFatal {
		t.Errorf("Action = %v, want fatal", v.Action)
	}
	if v.Err != wrapped {
		t.Errorf("Err = %v, want the original transport error", v.Err)
	}
	if ledger.Len() != 0 {
		t.Errorf("ledger has %d entries, want none", ledger.Len())
	}
}

func TestAction_String(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{ActionAccept, "accepted"},
		{ActionRetry, "retried"},
		{ActionAbandon, "abandoned"},
		{ActionFatal, "fatal"},
		{Action(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.action.String(); got != tt.want {
			t.Errorf("Action(%d).String() = %q, want %q", tt.action, got, tt.want)
		}
	}
}
