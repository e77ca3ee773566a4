package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/config"
	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/queue"
	"github.com/dunamismax/transformd/internal/store"
	"github.com/dunamismax/transformd/internal/workflow"
)

type Server struct {
	logger    *zap.Logger
	server    *asynq.Server
	sem       chan struct{}
	processes *workflow.Registry
	workItems store.WorkItemStore
	metrics   *metrics
	tracer    trace.Tracer
}

func NewServer(
	logger *zap.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	processes *workflow.Registry,
	workItems store.WorkItemStore,
) (*Server, error) {
	if processes == nil {
		return nil, fmt.Errorf("process registry is required")
	}
	if workItems == nil {
		return nil, fmt.Errorf("work item store is required")
	}

	s := newServer(logger, workerCfg, processes, workItems)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				s.logger.Warn("task failed",
					zap.String("type", task.Type()),
					zap.Int("retry", retried),
					zap.Int("max_retry", maxRetry),
					zap.Error(err),
				)
			}),
		},
	)
	return s, nil
}

func newServer(logger *zap.Logger, workerCfg config.WorkerConfig, processes *workflow.Registry, workItems store.WorkItemStore) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		logger:    logger,
		sem:       make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		processes: processes,
		workItems: workItems,
		metrics:   newMetrics(),
		tracer:    otel.Tracer("transformd/worker"),
	}
}

func (s *Server) Run() error {
	return s.server.Run(s.mux())
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeWorkflowProcess, s.handleWorkflowProcess)
	return mux
}

func (s *Server) handleWorkflowProcess(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.WorkItemStatusFailed

	payload, err := queue.ParseWorkflowPayload(task)
	if err != nil {
		s.metrics.skippedTotal.WithLabelValues("invalid_payload").Inc()
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.workflow_process", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("work_item.id", payload.WorkItemID),
		attribute.String("work_item.process", payload.Process),
		attribute.String("work_item.payload", payload.Payload),
	)
	defer span.End()
	defer func() {
		s.metrics.stepDuration.WithLabelValues(payload.Process, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.stepsTotal.WithLabelValues(payload.Process, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.metrics.activeSteps.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeSteps.Dec()
	}()

	logger := s.logger.With(
		zap.String("work_item_id", payload.WorkItemID),
		zap.String("process", payload.Process),
		zap.String("payload", payload.Payload),
	)
	logger.Info("working")

	s.updateStatus(ctx, payload.WorkItemID, domain.WorkItemStatusRunning, "")

	process, err := s.processes.Lookup(payload.Process)
	if err != nil {
		return s.fail(ctx, span, logger, payload, err, true)
	}

	item := domain.WorkItem{
		ID:          payload.WorkItemID,
		Process:     payload.Process,
		PayloadType: payload.PayloadType,
		Payload:     payload.Payload,
		Initiator:   payload.Initiator,
		Args:        payload.Args,
		Status:      domain.WorkItemStatusRunning,
	}
	session := workflow.Session{UserID: payload.Initiator}

	if err := process.Execute(ctx, item, session, workflow.MetaData(payload.Args)); err != nil {
		permanent := errors.Is(err, workflow.ErrUnsupportedPayload) || errors.Is(err, workflow.ErrResourceNotFound)
		return s.fail(ctx, span, logger, payload, err, permanent)
	}

	s.updateStatus(ctx, payload.WorkItemID, domain.WorkItemStatusCompleted, "")
	logger.Info("completed", zap.Duration("took", time.Since(startedAt)))

	outcome = domain.WorkItemStatusCompleted
	span.SetStatus(codes.Ok, "completed")
	return nil
}

func (s *Server) fail(ctx context.Context, span trace.Span, logger *zap.Logger, payload queue.WorkflowPayload, err error, permanent bool) error {
	s.updateStatus(ctx, payload.WorkItemID, domain.WorkItemStatusFailed, err.Error())
	span.RecordError(err)
	span.SetStatus(codes.Error, "workflow step failed")
	logger.Error("workflow step failed", zap.Bool("permanent", permanent), zap.Error(err))

	if permanent {
		s.metrics.skippedTotal.WithLabelValues("permanent_error").Inc()
		return fmt.Errorf("run %s: %v: %w", payload.Process, err, asynq.SkipRetry)
	}
	return fmt.Errorf("run %s: %w", payload.Process, err)
}

func (s *Server) updateStatus(ctx context.Context, id, status, errMsg string) {
	if _, err := s.workItems.UpdateStatus(ctx, id, status, errMsg); err != nil {
		s.logger.Warn("work item status update failed",
			zap.String("work_item_id", id),
			zap.String("status", status),
			zap.Error(err),
		)
	}
}
