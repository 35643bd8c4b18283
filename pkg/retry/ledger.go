// Package retry implements the per-URL retry budget used by the downloader.
package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MaxRetries is the total number of attempts allowed for one URL,
// the original request included.
const MaxRetries = 3

// Prometheus metrics for retry accounting.
var (
	kosRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kos_retries_total",
		Help: "Total number of retry attempts granted by the ledger",
	})

	kosRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kos_retry_exhausted_total",
		Help: "Total number of times a URL exhausted its retry budget",
	})
)

// Ledger counts failures per URL. Entries are never removed, so the ledger
// grows with the number of distinct URLs that ever failed.
//
// A Ledger is not safe for concurrent use; the downloader mutates it only
// from its control goroutine.
type Ledger struct {
	max    int
	counts map[string]int
}

// NewLedger creates a ledger allowing max attempts per URL.
// A non-positive max selects MaxRetries.
func NewLedger(max int) *Ledger {
	if max <= 0 {
		max = MaxRetries
	}
	return &Ledger{
		max:    max,
		counts: make(map[string]int),
	}
}

// ShouldRetry records a failure of url and reports whether another attempt
// is allowed. The first failure sets the count to 1; the result is true iff
// the new count is strictly below the budget, so with the default budget a
// URL is attempted at most three times.
//
// Keys are the literal URL strings: URLs differing only in parameter order
// have separate budgets.
func (l *Ledger) ShouldRetry(url string) bool {
	l.counts[url]++
	if l.counts[url] < l.max {
		kosRetriesTotal.Inc()
		return true
	}
	kosRetryExhaustedTotal.Inc()
	return false
}

// Count returns the number of failures recorded for url.
func (l *Ledger) Count(url string) int {
	return l.counts[url]
}

// Max returns the attempt budget per URL.
func (l *Ledger) Max() int {
	return l.max
}

// Len returns the number of URLs with at least one recorded failure.
func (l *Ledger) Len() int {
	return len(l.counts)
}
