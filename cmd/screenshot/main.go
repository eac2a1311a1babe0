package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faiz-00/screenshot/analyzer"
	"github.com/faiz-00/screenshot/api"
	"github.com/faiz-00/screenshot/cache"
	"github.com/faiz-00/screenshot/config"
	"github.com/faiz-00/screenshot/llm"
	"github.com/faiz-00/screenshot/meta"
	"github.com/faiz-00/screenshot/output"
	"github.com/faiz-00/screenshot/preflight"
	"github.com/faiz-00/screenshot/renderer"
	"github.com/faiz-00/screenshot/slicer"
	"github.com/faiz-00/screenshot/store"
	"github.com/faiz-00/screenshot/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	log := slog.Default()
	log.Info("screenshot service starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"viewport", fmt.Sprintf("%dx%d", cfg.Capture.ViewportWidth, cfg.Capture.ViewportHeight),
	)

	// ── 3. Run history database ─────────────────────────────────────
	var db *store.Store
	if cfg.Store.Path != "" {
		var err error
		db, err = store.Open(cfg.Store.Path)
		if err != nil {
			log.Error("failed to open run history database", "path", cfg.Store.Path, "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	// ── 4. Renderer (launches browser) ──────────────────────────────
	r, err := renderer.New(cfg.Browser, cfg.Capture, cfg.Scroll, log)
	if err != nil {
		log.Error("failed to initialise renderer", "error", err)
		os.Exit(1)
	}
	defer r.Close()

	// ── 5. Pipeline dependencies ────────────────────────────────────
	ws := output.New(cfg.Output.Root)
	if err := os.MkdirAll(ws.Root(), 0o755); err != nil {
		log.Error("failed to create output directory", "dir", ws.Root(), "error", err)
		os.Exit(1)
	}

	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Stop()

	var pf *preflight.Checker
	if cfg.Preflight.Enabled {
		pf = preflight.New(cfg.Preflight.Timeout, cfg.Preflight.FailureTTL, log)
		defer pf.Stop()
	}

	wh := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.Timeout, cfg.Webhook.MaxAttempts, log)

	a := analyzer.New(analyzer.Deps{
		Engine:    r,
		Workspace: ws,
		Slicer:    slicer.New(log),
		Extractor: meta.New(log),
		Store:     db,
		Cache:     cc,
		Preflight: pf,
		Webhook:   wh,
		Config:    cfg,
		Log:       log,
	})

	// ── 6. Router + HTTP server ─────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(a, r, ws, db, llm.NewClient(&http.Client{Timeout: cfg.LLM.Timeout}), cfg, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight captures 10 seconds to finish writing crops.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP server forced shutdown", "error", err)
	} else {
		log.Info("HTTP server drained gracefully")
	}

	// r.Close() runs via defer — drains the page pool and kills Chrome.
	log.Info("screenshot service stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
