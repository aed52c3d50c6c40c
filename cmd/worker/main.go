// Command worker consumes evaluation directives from the queue and
// runs the scoring pipeline.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hirehub/profile-evaluator/internal/adapter/ai"
	"github.com/hirehub/profile-evaluator/internal/adapter/github"
	"github.com/hirehub/profile-evaluator/internal/adapter/observability"
	"github.com/hirehub/profile-evaluator/internal/adapter/queue/sqs"
	"github.com/hirehub/profile-evaluator/internal/adapter/repo/postgres"
	"github.com/hirehub/profile-evaluator/internal/adapter/textextractor/tika"
	"github.com/hirehub/profile-evaluator/internal/adapter/wecp"
	"github.com/hirehub/profile-evaluator/internal/app"
	"github.com/hirehub/profile-evaluator/internal/config"
	"github.com/hirehub/profile-evaluator/internal/domain"
	"github.com/hirehub/profile-evaluator/internal/pipeline"
	"github.com/hirehub/profile-evaluator/internal/service/githubscore"
	"github.com/hirehub/profile-evaluator/internal/service/resumescore"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	wecpClient := wecp.New(cfg)
	extractor := tika.New(cfg.TikaURL)

	var aiClient domain.AIClient = ai.New(cfg)
	if cfg.LLMAPIKey == "" && cfg.IsDev() {
		slog.Warn("no LLM key configured, using stubbed resume scoring")
		aiClient = ai.Stub{}
	}

	ghScorer := githubscore.New(ghClient)
	resumeScorer := resumescore.New(extractor, aiClient)

	processor := pipeline.NewProcessor(studentRepo, jobRepo, ghScorer, resumeScorer, ghClient, cfg)
	consumer := pipeline.NewConsumer(queue, jobRepo, driveRepo, studentRepo, wecpClient, processor, cfg)

	sweeper := app.NewStuckJobSweeper(jobRepo, 0, 0)
	go sweeper.Run(ctx)

	// Metrics endpoint for scraping; the worker serves no API.
	metricsSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics server starting", slog.Int("port", cfg.MetricsPort))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	slog.Info("worker starting", slog.Duration("poll_interval", cfg.PollInterval))
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("consumer stopped", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
