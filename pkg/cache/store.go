package cache

import "context"

// Store maps request URLs to previously captured response bodies.
// Implementations never return errors: failures degrade to a miss or a
// skipped write.
type Store interface {
	// Lookup returns the cached body for url, if any.
	Lookup(ctx context.Context, url string) ([]byte, bool)

	// Store persists body for url unless an entry already exists.
	Store(ctx context.Context, url string, body []byte)

	// Enabled reports whether the store can hold entries at all.
	Enabled() bool
}

// Disabled is the Store used when no cache is configured.
type Disabled struct{}

// Lookup always misses.
func (Disabled) Lookup(context.Context, string) ([]byte, bool) { return nil, false }

// Store is a no-op.
func (Disabled) Store(context.Context, string, []byte) {}

// Enabled returns false.
func (Disabled) Enabled() bool { return false }
