package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-path/internal/api"
	"github.com/p-n-ai/pai-path/internal/catalog"
	"github.com/p-n-ai/pai-path/internal/content"
	"github.com/p-n-ai/pai-path/internal/learning"
	"github.com/p-n-ai/pai-path/internal/platform/config"
)

const catalogRetryInterval = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	be, err := openBackends(ctx, cfg)
	if err != nil {
		slog.Error("failed to open backends", "error", err)
		os.Exit(1)
	}
	defer be.Close()

	library := learning.NewLibrary(newCatalogSource(cfg.Catalog))
	if err := library.Reload(ctx); err != nil {
		slog.Warn("initial catalog load failed, serving loading state", "error", err)
		go keepLoading(ctx, library, catalogRetryInterval)
	}
	if cfg.Catalog.Watch && cfg.Catalog.URL == "" {
		startWatcher(ctx, cfg.Catalog, library)
	}

	handler := api.New(api.Config{
		Library:       library,
		Progress:      be.progress,
		Content:       newContentFetcher(cfg.Content),
		Feedback:      be.feedback,
		Events:        be.events,
		SubmitTimeout: cfg.Feedback.SubmitTimeout,
		Checks:        be.checks,
	}).Handler()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: learner sessions are long-lived WebSockets.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		slog.Info("server starting",
			"addr", srv.Addr,
			"progress_backend", cfg.Progress.Backend,
			"feedback_backend", cfg.Feedback.Backend,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and
// LEARN_LOG_FORMAT.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newCatalogSource(cfg config.CatalogConfig) catalog.Source {
	if cfg.URL != "" {
		attempts := uint(1)
		if cfg.Retries > 0 {
			attempts = uint(cfg.Retries)
		}
		return catalog.NewHTTPSource(cfg.URL, catalog.WithRetry(attempts, 500*time.Millisecond))
	}
	return catalog.NewDirSource(cfg.Path)
}

// newContentFetcher returns nil when no content location is configured.
func newContentFetcher(cfg config.ContentConfig) content.Fetcher {
	switch {
	case cfg.BaseURL != "":
		retries := uint(1)
		if cfg.Retries > 0 {
			retries = uint(cfg.Retries)
		}
		return content.NewHTTPFetcher(cfg.BaseURL, cfg.Timeout, retries)
	case cfg.Dir != "":
		return content.NewDirFetcher(cfg.Dir)
	default:
		return nil
	}
}

func startWatcher(ctx context.Context, cfg config.CatalogConfig, library *learning.Library) {
	w, err := catalog.NewWatcher(cfg.Path, cfg.Debounce, func() {
		_ = library.Reload(ctx)
	})
	if err != nil {
		slog.Warn("catalog watch disabled", "path", cfg.Path, "error", err)
		return
	}
	slog.Info("watching catalog", "path", cfg.Path)
	go w.Run(ctx)
}

// keepLoading retries the catalog until one load succeeds.
func keepLoading(ctx context.Context, library *learning.Library, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if library.Ready() {
				return
			}
			if err := library.Reload(ctx); err == nil {
				return
			}
		}
	}
}
