package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	redisBackend = "redis"

	// DefaultRedisPrefix namespaces cache keys in a shared Redis database.
	DefaultRedisPrefix = "kos:cache"
)

// RedisStore keeps entries as plain Redis strings without expiry.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	logger zerolog.Logger
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(redisClient *redis.Client, prefix string, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
		logger: logger.With().Str("component", "cache").Str("backend", redisBackend).Logger(),
	}
}

// RedisKey returns the Redis key holding the entry for url.
func (s *RedisStore) RedisKey(url string) string {
	return s.prefix + ":" + Key(url)
}

// Lookup retrieves the entry for url.
func (s *RedisStore) Lookup(ctx context.Context, url string) ([]byte, bool) {
	body, err := s.redis.Get(ctx, s.RedisKey(url)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			CacheErrors.WithLabelValues(redisBackend, "lookup").Inc()
			s.logger.Warn().Err(err).Str("url", url).Msg("Redis get failed")
		}
		CacheMisses.WithLabelValues(redisBackend).Inc()
		return nil, false
	}

	CacheHits.WithLabelValues(redisBackend).Inc()
	return body, true
}

// Store writes body for url with SETNX, so an existing entry is kept.
func (s *RedisStore) Store(ctx context.Context, url string, body []byte) {
	created, err := s.redis.SetNX(ctx, s.RedisKey(url), body, 0).Result()
	if err != nil {
		CacheErrors.WithLabelValues(redisBackend, "store").Inc()
		s.logger.Warn().Err(err).Str("url", url).Msg("Redis setnx failed")
		return
	}

	if created {
		CacheWrites.WithLabelValues(redisBackend).Inc()
		s.logger.Debug().Str("url", url).Int("bytes", len(body)).Msg("Cached response")
	}
}

// Enabled returns true.
func (s *RedisStore) Enabled() bool {
	return true
}
