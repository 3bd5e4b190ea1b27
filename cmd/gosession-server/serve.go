package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrEthical07/goSession/httpapi"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
	log := newLogger(cfg)

	rdb, err := connectRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	users, closeUsers, err := openUsers(ctx, cfg.Mongo, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeUsers(context.Background()); err != nil {
			log.Warn("user store close failed", "err", err)
		}
	}()

	resolver, err := newResolver(cfg, users, log)
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg, rdb, resolver, log)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	logSecurityReport(engine, log)

	opts := httpapi.Options{
		Engine:         engine,
		Users:          users,
		Connections:    users,
		Logger:         log,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		TrustProxy:     cfg.HTTP.TrustProxy,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promexport.Handler(engine)
	}
	router, err := httpapi.NewRouter(opts)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
