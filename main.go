// Command notecrumbs runs the rendering gateway: it loads configuration,
// opens the event store, wires the relay pool, fetch coordinator,
// assembler and renderer together, and serves HTTP until a shutdown
// signal arrives. Process bring-up and graceful shutdown are grounded on
// the teacher's main.go (InitLogger, the http.Server timeout values, and
// the SIGTERM/SIGINT cleanup goroutine).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"notecrumbs/internal/assemble"
	"notecrumbs/internal/config"
	"notecrumbs/internal/fetch"
	"notecrumbs/internal/httpapi"
	"notecrumbs/internal/metrics"
	"notecrumbs/internal/relaypool"
	"notecrumbs/internal/render"
	"notecrumbs/internal/rendercache"
	"notecrumbs/internal/store"
)

func initLogger(levelStr string) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", "level", level.String())
}

func newRenderCache(cfg config.Config) rendercache.Backend {
	if cfg.RedisURL == "" {
		return rendercache.NewMemory()
	}
	cache, err := rendercache.NewRedis(cfg.RedisURL, "notecrumbs:render:")
	if err != nil {
		slog.Warn("redis render cache unavailable, falling back to in-memory cache", "error", err)
		return rendercache.NewMemory()
	}
	return cache
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	initLogger(cfg.LogLevel)
	metrics.SetStartTime(time.Now())

	var readRelays []string
	for _, seed := range cfg.RelaySeeds {
		if seed.Read {
			readRelays = append(readRelays, seed.URL)
		}
	}
	relaypool.SetDefaultRelays(readRelays)

	eventStore, err := store.OpenBadgerStore(cfg.DataDir)
	if err != nil {
		slog.Error("opening event store failed", "error", err)
		os.Exit(1)
	}

	pool := relaypool.New()
	fetcher := fetch.NewEventFetcher(eventStore, pool)
	assembler := assemble.New(eventStore, fetcher, pool)
	renderer := render.New(cfg.BaseURL)
	cache := newRenderCache(cfg)

	server := httpapi.New(cfg, eventStore, assembler, renderer, cache, pool)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		sigterm := make(chan os.Signal, 1)
		signal.Notify(sigterm, syscall.SIGTERM, syscall.SIGINT)
		<-sigterm
		slog.Info("shutdown signal received, cleaning up...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		pool.Close()
		if err := cache.Close(); err != nil {
			slog.Error("render cache close error", "error", err)
		}
		if err := eventStore.Close(); err != nil {
			slog.Error("event store close error", "error", err)
		}
		slog.Info("cleanup complete")
	}()

	slog.Info("starting server", "addr", cfg.ListenAddr, "gzip", cfg.GzipEnabled, "base_url", cfg.BaseURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
