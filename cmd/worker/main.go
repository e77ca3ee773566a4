package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/backend"
	"github.com/dunamismax/transformd/internal/config"
	"github.com/dunamismax/transformd/internal/logging"
	"github.com/dunamismax/transformd/internal/replication"
	"github.com/dunamismax/transformd/internal/telemetry"
	"github.com/dunamismax/transformd/internal/worker"
	"github.com/dunamismax/transformd/internal/workflow"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Log, "worker")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "transformd-worker", cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	be, err := backend.Open(ctx, cfg, logger.Named("backend"))
	if err != nil {
		logger.Fatal("backend setup failed", zap.Error(err))
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Warn("backend close failed", zap.Error(err))
		}
	}()

	agents, err := replication.LoadAgents(cfg.Replication.AgentsPath)
	if err != nil {
		logger.Fatal("load replication agents failed", zap.String("path", cfg.Replication.AgentsPath), zap.Error(err))
	}

	transport := replication.NewHTTPTransport(replication.HTTPConfig{
		Timeout:        cfg.Replication.Timeout,
		MaxAttempts:    cfg.Replication.MaxAttempts,
		InitialBackoff: cfg.Replication.InitialBackoff,
		MaxBackoff:     cfg.Replication.MaxBackoff,
	})
	replicator := replication.NewReplicator(agents, transport, be.Repository, logger.Named("replication"))

	processLogger := logger.Named("workflow")
	processes := workflow.NewRegistry(
		workflow.NewDeactivateProcess(be.Repository, replicator, processLogger),
		workflow.NewParameterizedDeactivateProcess(be.Repository, replicator, processLogger),
	)

	logger.Info("starting worker",
		zap.Int("concurrency", cfg.Worker.Concurrency),
		zap.Int("max_active_jobs", cfg.Worker.MaxActiveJobs),
		zap.String("queue", cfg.Queue.Name),
		zap.String("redis", cfg.Queue.RedisAddr),
		zap.Int("agents", len(agents.Agents())),
		zap.Strings("processes", processes.Labels()),
	)

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, processes, be.WorkItems)
	if err != nil {
		logger.Fatal("worker setup failed", zap.Error(err))
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	// Run blocks until SIGTERM or SIGINT.
	if err := srv.Run(); err != nil {
		logger.Error("worker failed", zap.Error(err))
	}
}
