package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/queue"
	"github.com/dunamismax/transformd/internal/repository"
	"github.com/dunamismax/transformd/internal/resolve"
	"github.com/dunamismax/transformd/internal/store"
	"github.com/dunamismax/transformd/internal/transform"
	"github.com/dunamismax/transformd/internal/workflow"
)

const defaultRateLimitUserIDHeader = "X-User-ID"

type Server struct {
	logger                *zap.Logger
	avoidUsage            *zap.Logger
	dispatcher            *transform.Dispatcher
	repo                  repository.Repository
	resolver              *resolve.Resolver
	queueClient           queueEnqueuer
	workItems             store.WorkItemStore
	processes             *workflow.Registry
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	metrics               *metrics
	tracer                trace.Tracer
	mux                   *http.ServeMux
}

type queueEnqueuer interface {
	EnqueueWorkflowStep(ctx context.Context, payload queue.WorkflowPayload) (*asynq.TaskInfo, error)
}

// Deps are the collaborators the API serves. Queue, WorkItems and
// Processes may be nil, which disables the workflow endpoints.
type Deps struct {
	Logger                *zap.Logger
	Dispatcher            *transform.Dispatcher
	Repository            repository.Repository
	Resolver              *resolve.Resolver
	Queue                 queueEnqueuer
	WorkItems             store.WorkItemStore
	Processes             *workflow.Registry
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string
	Tracer                trace.Tracer
}

func NewServer(deps Deps) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("transform dispatcher is required")
	}
	if deps.Repository == nil {
		return nil, errors.New("repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = resolve.NewResolver(deps.Repository, nil, logger.Named("resolve"))
	}
	header := strings.TrimSpace(deps.RateLimitUserIDHeader)
	if header == "" {
		header = defaultRateLimitUserIDHeader
	}

	s := &Server{
		logger:                logger,
		avoidUsage:            logger.Named("avoid_usage"),
		dispatcher:            deps.Dispatcher,
		repo:                  deps.Repository,
		resolver:              resolver,
		queueClient:           deps.Queue,
		workItems:             deps.WorkItems,
		processes:             deps.Processes,
		rateLimiter:           deps.RateLimiter,
		rateLimitUserIDHeader: header,
		metrics:               newMetrics(),
		tracer:                deps.Tracer,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/workflows/deactivate", s.handleCreateDeactivation)
	s.mux.HandleFunc("GET /v1/workflows/{id}", s.handleGetWorkItem)
	s.mux.HandleFunc("GET /", s.handleTransform)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	decoder := json.NewDecoder(limited)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
