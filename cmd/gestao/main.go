package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"gestao/internal/app"
	"gestao/internal/auth"
	"gestao/internal/backend"
	"gestao/internal/cli"
	apphttp "gestao/internal/http"
	applog "gestao/internal/log"
	"gestao/internal/services"
	"gestao/internal/session"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	}()

	provider := auth.NewLocal(be.Users)
	gate := session.NewGate(provider)
	defer gate.Close()

	state := app.NewStore(logger)
	syncer := services.NewSynchronizer(be.Store, state, logger)
	defer syncer.Close()
	unfollow := services.FollowSession(gate, state, syncer)
	defer unfollow()

	writer := services.NewTransactionWriter(be.Store, gate, logger)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Dependencies{
		Auth:   provider,
		State:  state,
		Writer: writer,
		Ready:  be.Ready,
	}, apphttp.Options{
		RecentLimit:        cfg.RecentLimit,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ViewCacheTTL:       cfg.ViewCacheTTL,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting gestao server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if be.Consume != nil {
		g.Go(func() error {
			if err := be.Consume(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		// Let in-flight writes land before the store closes.
		writer.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
