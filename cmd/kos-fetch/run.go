package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/JanTvrdik/kos-api/pkg/cache"
	"github.com/JanTvrdik/kos-api/pkg/client"
	"github.com/JanTvrdik/kos-api/pkg/config"
	"github.com/JanTvrdik/kos-api/pkg/downloader"
	"github.com/JanTvrdik/kos-api/pkg/feed"
	"github.com/JanTvrdik/kos-api/pkg/logging"
	"github.com/JanTvrdik/kos-api/pkg/metrics"
)

// record is one output line.
type record struct {
	Resource string `json:"resource"`
	Page     int    `json:"page"`
	ID       string `json:"id"`
	Code     string `json:"code"`
	Title    string `json:"title,omitempty"`
	Updated  string `json:"updated,omitempty"`
}

// run downloads resources and writes their entries to out.
func run(ctx context.Context, cfg *config.Config, resources []string, extra map[string]string, out io.Writer) error {
	logger := logging.NewLogger("kos-fetch")

	if cfg.Metrics.Addr != "" {
		stop := serveMetrics(cfg.Metrics.Addr, logger)
		defer stop()
	}

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	kos, err := client.New(cfg.ClientConfig())
	if err != nil {
		return fmt.Errorf("create KOS client: %w", err)
	}
	defer kos.Close()

	d, err := downloader.New(cfg.DownloaderConfig(), kos, store, logger)
	if err != nil {
		return fmt.Errorf("create downloader: %w", err)
	}

	enc := json.NewEncoder(out)
	var writeErr error
	handler := func(doc *feed.Document, req *downloader.ResourceRequest, page int) {
		if writeErr != nil {
			return
		}
		for _, e := range doc.Entries() {
			if err := enc.Encode(newRecord(req.Resource, page, e)); err != nil {
				writeErr = fmt.Errorf("write output: %w", err)
				return
			}
		}
	}

	for _, resource := range resources {
		params := map[string]string{"limit": strconv.Itoa(cfg.Downloader.PageLimit)}
		for k, v := range extra {
			params[k] = v
		}
		d.Submit(&downloader.ResourceRequest{
			Resource: resource,
			Params:   params,
			Handler:  handler,
		})
	}

	runErr := d.Run(ctx)

	stats := d.Stats()
	logger.Info().
		Int("issued", stats.Issued).
		Int("cached", stats.Cached).
		Int("accepted", stats.Accepted).
		Int("retried", stats.Retried).
		Int("abandoned", stats.Abandoned).
		Int("peak_in_flight", stats.PeakInFlight).
		Msg("Download summary")

	return errors.Join(runErr, writeErr)
}

func newRecord(resource string, page int, e *feed.Entry) record {
	r := record{
		Resource: resource,
		Page:     page,
		ID:       e.ID(),
		Code:     e.Code(),
		Title:    e.Title(),
	}
	if updated, err := e.Updated(); err == nil {
		r.Updated = updated.UTC().Format(time.RFC3339)
	}
	return r
}

// openStore picks the cache backend. An unreachable Redis disables caching.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (cache.Store, func()) {
	if cfg.Downloader.RedisAddr == "" {
		return cache.NewDiskStore(cfg.Downloader.CacheDir, logger), func() {}
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Downloader.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Error().Err(err).Str("addr", cfg.Downloader.RedisAddr).Msg("Redis unavailable, caching disabled")
		redisClient.Close()
		return cache.Disabled{}, func() {}
	}

	logger.Info().Str("addr", cfg.Downloader.RedisAddr).Msg("Connected to Redis cache")
	return cache.NewRedisStore(redisClient, cfg.Downloader.RedisPrefix, logger), func() { redisClient.Close() }
}

// serveMetrics starts the metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	server := metrics.NewServer(addr)

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}
