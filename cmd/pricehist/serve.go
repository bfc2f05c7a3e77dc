package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/pricehist/api"
	"github.com/use-agent/pricehist/api/handler"
	"github.com/use-agent/pricehist/api/middleware"
	"github.com/use-agent/pricehist/browser"
	"github.com/use-agent/pricehist/cache"
	"github.com/use-agent/pricehist/scraper"
	"github.com/use-agent/pricehist/webhook"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the price-history HTTP API on one shared browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (default from PRICEHIST_PORT)")
	return cmd
}

func serve(cmd *cobra.Command, port int) error {
	ctx := cmd.Context()

	// ── 1. Configuration and logging ────────────────────────────────
	cfg := loadConfig(cmd)
	if port > 0 {
		cfg.Server.Port = port
	}
	logger := initLogger(cfg.Log)
	logger.Info("pricehist server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"auth", cfg.Auth.Enabled,
	)

	// ── 2. Browser session and scraper ──────────────────────────────
	session, err := browser.Launch(cfg.Browser, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		return err
	}
	sc, err := scraper.New(session, cfg.Extract, logger)
	if err != nil {
		session.Close()
		return err
	}
	defer sc.Close()

	// ── 3. Shared state ─────────────────────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer cc.Close()
	jobs := handler.NewJobStore(time.Hour)
	defer jobs.Close()
	limiters := middleware.NewLimiters(cfg.RateLimit)
	defer limiters.Close()

	// ── 4. Router ───────────────────────────────────────────────────
	router := api.NewRouter(cfg, api.Deps{
		Extractor: sc,
		Cache:     cc,
		Limiters:  limiters,
		Batch: handler.BatchOptions{
			Ctx:            ctx,
			Jobs:           jobs,
			Notifier:       webhook.NewNotifier(cfg.Webhook.Secret, logger),
			DefaultWebhook: cfg.Webhook.URL,
		},
		StartTime: time.Now(),
	})

	// ── 5. HTTP server ──────────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server forced shutdown", "error", err)
	} else {
		logger.Info("HTTP server drained gracefully")
	}

	logger.Info("pricehist server stopped")
	return nil
}
