package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const diskBackend = "disk"

var linkFile = os.Link

// DiskStore keeps one file per URL under a directory.
type DiskStore struct {
	dir    string
	logger zerolog.Logger
}

// NewDiskStore returns a disk-backed store rooted at dir, creating the
// directory if needed. An empty dir, or a directory that cannot be created,
// yields Disabled; the latter is logged at error level.
func NewDiskStore(dir string, logger zerolog.Logger) Store {
	logger = logger.With().Str("component", "cache").Str("backend", diskBackend).Logger()

	if dir == "" {
		logger.Debug().Msg("No cache directory configured, caching disabled")
		return Disabled{}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		CacheErrors.WithLabelValues(diskBackend, "init").Inc()
		logger.Error().Err(err).Str("dir", dir).Msg("Failed to create cache directory, caching disabled")
		return Disabled{}
	}

	return &DiskStore{dir: dir, logger: logger}
}

// Path returns the file an entry for url is stored in.
func (s *DiskStore) Path(url string) string {
	return filepath.Join(s.dir, Key(url))
}

// Lookup reads the entry for url.
func (s *DiskStore) Lookup(_ context.Context, url string) ([]byte, bool) {
	body, err := os.ReadFile(s.Path(url))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			CacheErrors.WithLabelValues(diskBackend, "lookup").Inc()
			s.logger.Warn().Err(err).Str("url", url).Msg("Cache read failed")
		}
		CacheMisses.WithLabelValues(diskBackend).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(diskBackend).Inc()
	return body, true
}

// Store writes body for url unless an entry exists. The body goes to a
// temporary file first and is then linked into place, so readers only ever
// see complete entries and an existing entry is never replaced.
func (s *DiskStore) Store(_ context.Context, url string, body []byte) {
	target := s.Path(url)
	if _, err := os.Stat(target); err == nil {
		return
	}

	if err := s.writeExclusive(target, body); err != nil {
		CacheErrors.WithLabelValues(diskBackend, "store").Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("Failed to cache response")
		return
	}

	CacheWrites.WithLabelValues(diskBackend).Inc()
	s.logger.Debug().Str("url", url).Int("bytes", len(body)).Msg("Cached response")
}

// Enabled returns true.
func (s *DiskStore) Enabled() bool {
	return true
}

func (s *DiskStore) writeExclusive(target string, body []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	err = linkFile(tmpPath, target)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrExist):
		// written in the meantime, the existing entry wins
		return nil
	}

	// filesystems without hard links
	return createExclusive(target, body)
}

func createExclusive(target string, body []byte) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}

	if _, err := f.Write(body); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(target)
		return fmt.Errorf("close cache file: %w", err)
	}
	return nil
}
