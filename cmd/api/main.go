package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/api"
	"github.com/dunamismax/transformd/internal/backend"
	"github.com/dunamismax/transformd/internal/config"
	"github.com/dunamismax/transformd/internal/imaging"
	"github.com/dunamismax/transformd/internal/logging"
	"github.com/dunamismax/transformd/internal/queue"
	"github.com/dunamismax/transformd/internal/ratelimit"
	"github.com/dunamismax/transformd/internal/resolve"
	"github.com/dunamismax/transformd/internal/telemetry"
	"github.com/dunamismax/transformd/internal/transform"
	"github.com/dunamismax/transformd/internal/workflow"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := logging.New(cfg.Log, "api")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "transformd-api", cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("tracing setup failed", zap.Error(err))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	if err := imaging.Startup(); err != nil {
		logger.Fatal("imaging runtime startup failed", zap.Error(err))
	}
	defer imaging.Shutdown()

	registry := transform.NewRegistry()
	transform.RegisterBuiltins(registry)
	for _, typ := range cfg.Transform.DisabledTransformers {
		registry.UnbindTransformer(typ)
		logger.Info("image transformer disabled", zap.String("type", typ))
	}
	if _, _, err := transform.ReloadDefinitions(registry, cfg.Transform.DefinitionsPath); err != nil {
		logger.Fatal("load transform definitions failed", zap.String("path", cfg.Transform.DefinitionsPath), zap.Error(err))
	}
	logger.Info("named transforms bound", zap.Strings("names", registry.NamedNames()))

	filenamePattern, err := transform.CompileFilenamePattern(cfg.Transform.FilenamePattern)
	if err != nil {
		logger.Error("invalid filename pattern, using default", zap.Error(err))
		filenamePattern, _ = transform.CompileFilenamePattern("")
	}

	be, err := backend.Open(ctx, cfg, logger.Named("backend"))
	if err != nil {
		logger.Fatal("backend setup failed", zap.Error(err))
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Warn("backend close failed", zap.Error(err))
		}
	}()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), queue.ClientOptions{
		Queue:       cfg.Queue.Name,
		MaxRetry:    cfg.Queue.MaxRetry,
		TaskTimeout: cfg.Queue.TaskTimeout,
		Retention:   cfg.Queue.Retention,
	})
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close failed", zap.Error(err))
		}
	}()

	var limiter api.RateLimiter
	if cfg.API.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		bucket, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.API.RateLimit.Capacity, cfg.API.RateLimit.Window, "")
		if err != nil {
			logger.Fatal("rate limiter setup failed", zap.Error(err))
		}
		limiter = bucket
	}

	// the api only checks process labels; execution happens in the worker
	processes := workflow.NewRegistry(
		workflow.NewDeactivateProcess(be.Repository, nil, logger),
		workflow.NewParameterizedDeactivateProcess(be.Repository, nil, logger),
	)

	app, err := api.NewServer(api.Deps{
		Logger:      logger,
		Dispatcher:  transform.NewDispatcher(registry, filenamePattern, logger.Named("transform")),
		Repository:  be.Repository,
		Resolver:    resolve.NewResolver(be.Repository, resolve.CompileRenditionPicker(cfg.Transform.RenditionPicker, logger), logger.Named("resolve")),
		Queue:       queueClient,
		WorkItems:   be.WorkItems,
		Processes:   processes,
		RateLimiter: limiter,
		Tracer:      otel.Tracer("transformd/api"),
	})
	if err != nil {
		logger.Fatal("api setup failed", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", cfg.API.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			bound, unbound, err := transform.ReloadDefinitions(registry, cfg.Transform.DefinitionsPath)
			if err != nil {
				logger.Error("reload transform definitions failed, keeping current set",
					zap.String("path", cfg.Transform.DefinitionsPath),
					zap.Error(err),
				)
				continue
			}
			logger.Info("transform definitions reloaded", zap.Strings("bound", bound), zap.Strings("unbound", unbound))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	signal.Stop(reload)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}
