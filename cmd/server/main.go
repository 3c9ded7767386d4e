package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	webAdapter "finledger/internal/adapters/web"
	"finledger/internal/app"
	"finledger/internal/config"
	"finledger/internal/logging"
	"finledger/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc, closeStore, err := app.Open(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.AuthDisabled {
		logger.Warn("authentication disabled; tenant taken from X-Tenant-ID", zap.String("default_tenant", cfg.DefaultTenant))
	}

	servers := []*http.Server{{
		Addr: ":" + cfg.ServerPort,
		Handler: webAdapter.NewHandler(svc, webAdapter.Options{
			AllowedOrigins: cfg.Origins(),
			JWTSecret:      cfg.JWTSecret,
			AuthDisabled:   cfg.AuthDisabled,
			DefaultTenant:  cfg.DefaultTenant,
			Logger:         logger,
			Metrics:        m,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if cfg.MetricsPort != "" && cfg.MetricsPort != cfg.ServerPort {
		servers = append(servers, &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("server starting", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen on %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			errs = append(errs, srv.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
