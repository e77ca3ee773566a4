package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/domain"
)

var ErrInvalidAction = errors.New("invalid replication action")

// StatusRecorder persists the replication status of a resource.
type StatusRecorder interface {
	SetReplicationStatus(ctx context.Context, path string, status domain.ReplicationStatus) error
}

type Outcome struct {
	AgentID string
	Err     error
}

type Result struct {
	Action        Action
	Path          string
	Outcomes      []Outcome
	StatusUpdated bool
}

// Succeeded reports how many agents accepted the request.
func (r Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

type Replicator struct {
	agents    *AgentRegistry
	transport Transport
	status    StatusRecorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewReplicator(agents *AgentRegistry, transport Transport, status StatusRecorder, logger *zap.Logger) *Replicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replicator{
		agents:    agents,
		transport: transport,
		status:    status,
		logger:    logger,
		now:       time.Now,
	}
}

// Replicate sends one request per enabled agent accepted by opts.Filter.
// Delivery errors are collected per agent; the returned error joins them.
// The resource's replication status is recorded unless suppressed or no
// agent accepted the request.
func (r *Replicator) Replicate(ctx context.Context, action Action, path string, opts Options) (Result, error) {
	if !action.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, fmt.Errorf("replication path is required")
	}

	result := Result{Action: action, Path: path}
	var targets []Agent
	for _, agent := range r.agents.Agents() {
		if opts.includes(agent) {
			targets = append(targets, agent)
		}
	}
	if len(targets) == 0 {
		r.logger.Info("no replication agent selected",
			zap.String("action", string(action)),
			zap.String("path", path),
		)
		return result, nil
	}

	req := Request{
		Action:    action,
		Path:      path,
		Initiator: opts.Initiator,
		Time:      r.now().UTC(),
	}

	result.Outcomes = make([]Outcome, len(targets))
	if opts.Synchronous {
		for i, agent := range targets {
			result.Outcomes[i] = Outcome{AgentID: agent.ID, Err: r.transport.Deliver(ctx, agent, req)}
		}
	} else {
		var wg sync.WaitGroup
		for i, agent := range targets {
			wg.Add(1)
			go func() {
				defer wg.Done()
				result.Outcomes[i] = Outcome{AgentID: agent.ID, Err: r.transport.Deliver(ctx, agent, req)}
			}()
		}
		wg.Wait()
	}

	var errs []error
	for _, o := range result.Outcomes {
		if o.Err != nil {
			r.logger.Warn("replication to agent failed",
				zap.String("agent", o.AgentID),
				zap.String("action", string(action)),
				zap.String("path", path),
				zap.Error(o.Err),
			)
			errs = append(errs, o.Err)
			continue
		}
		r.logger.Info("replicated",
			zap.String("agent", o.AgentID),
			zap.String("action", string(action)),
			zap.String("path", path),
		)
	}

	if !opts.SuppressStatusUpdate && result.Succeeded() > 0 && r.status != nil {
		status := domain.ReplicationStatus{
			LastAction: string(action),
			LastBy:     opts.Initiator,
			At:         req.Time,
		}
		if err := r.status.SetReplicationStatus(ctx, path, status); err != nil {
			errs = append(errs, fmt.Errorf("update replication status: %w", err))
		} else {
			result.StatusUpdated = true
		}
	}

	return result, errors.Join(errs...)
}
