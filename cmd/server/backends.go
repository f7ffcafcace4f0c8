package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/p-n-ai/pai-path/internal/api"
	"github.com/p-n-ai/pai-path/internal/feedback"
	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/platform/cache"
	"github.com/p-n-ai/pai-path/internal/platform/config"
	"github.com/p-n-ai/pai-path/internal/platform/database"
	"github.com/p-n-ai/pai-path/internal/progress"
)

// backends are the storage collaborators selected by config.
type backends struct {
	progress progress.Store
	feedback feedback.Sink
	events   learning.EventLogger
	checks   []api.HealthCheck

	db    *database.DB
	cache *cache.Cache
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	be := &backends{}

	if cfg.NeedsDatabase() {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		be.db = db
		if cfg.Database.ApplySchema {
			if err := database.ApplySchema(ctx, db.Pool); err != nil {
				be.Close()
				return nil, err
			}
		}
		be.checks = append(be.checks, api.HealthCheck{Name: "database", Check: db.HealthCheck})
		slog.Info("database connected")
	}

	if cfg.NeedsCache() {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			be.Close()
			return nil, err
		}
		be.cache = c
		be.checks = append(be.checks, api.HealthCheck{Name: "cache", Check: c.HealthCheck})
		slog.Info("cache connected")
	}

	var err error
	if be.progress, err = be.progressStore(cfg.Progress); err != nil {
		be.Close()
		return nil, err
	}
	be.feedback = be.feedbackSink(cfg.Feedback)
	be.events = be.eventLogger(cfg.Events.Backend)
	return be, nil
}

func (be *backends) progressStore(cfg config.ProgressConfig) (progress.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return progress.NewPostgresStore(be.db.Pool)
	case "redis":
		return progress.NewRedisStore(be.cache.Client)
	case "http":
		return progress.NewHTTPStore(cfg.URL, &http.Client{Timeout: 5 * time.Second}), nil
	case "memory":
		return progress.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown progress backend %q", cfg.Backend)
	}
}

func (be *backends) feedbackSink(cfg config.FeedbackConfig) feedback.Sink {
	switch cfg.Backend {
	case "postgres":
		return feedback.NewPostgresSink(be.db.Pool)
	case "http":
		return feedback.NewHTTPSink(cfg.URL, &http.Client{Timeout: cfg.SubmitTimeout})
	case "memory":
		return feedback.NewMemorySink()
	default:
		return feedback.NopSink{}
	}
}

func (be *backends) eventLogger(backend string) learning.EventLogger {
	switch backend {
	case "postgres":
		return learning.NewPostgresEventLogger(be.db.Pool)
	case "memory":
		return learning.NewMemoryEventLogger()
	default:
		return learning.NopEventLogger{}
	}
}

// Close releases any open connections.
func (be *backends) Close() {
	if be.cache != nil {
		if err := be.cache.Close(); err != nil {
			slog.Warn("cache close failed", "error", err)
		}
	}
	if be.db != nil {
		be.db.Close()
	}
}
