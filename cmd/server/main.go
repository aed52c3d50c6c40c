// Command server starts the profile evaluation HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hirehub/profile-evaluator/internal/adapter/github"
	"github.com/hirehub/profile-evaluator/internal/adapter/httpserver"
	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/adapter/queue/sqs"
	"github.com/hirehub/profile-evaluator/internal/adapter/repo/postgres"
	"github.com/hirehub/profile-evaluator/internal/app"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		slog.Error("db migrate failed", slog.Any("error", err))
		os.Exit(1)
	}

	jobRepo := postgres.NewJobRepo(pool, cfg.LockMaxAttempts)
	driveRepo := postgres.NewDriveRepo(pool)
	studentRepo := postgres.NewStudentRepo(pool)

	queue, err := sqs.New(ctx, cfg)
	if err != nil {
		slog.Error("queue connect failed", slog.Any("error", err))
		os.Exit(1)
	}

	ghClient := github.New(cfg)

	submitSvc := usecase.NewSubmitService(jobRepo, driveRepo, studentRepo, queue)
	jobsSvc := usecase.NewJobQueryService(jobRepo)

	dbCheck, queueCheck, tikaCheck := app.BuildReadinessChecks(cfg, pool, queue)
	srv := httpserver.NewServer(cfg, submitSvc, jobsSvc, ghClient, dbCheck, queueCheck, tikaCheck)
	handler := app.BuildRouter(cfg, srv)

	srvHTTP := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server starting", slog.Int("port", cfg.Port))
		errCh <- srvHTTP.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = srvHTTP.Shutdown(shutdownCtx)
}
