package workflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/replication"
	"github.com/dunamismax/transformd/internal/repository"
)

const LabelDeactivate = "Deactivate Page"

// OptionsPreparer adjusts replication options for a single execution.
type OptionsPreparer func(opts replication.Options, args MetaData) replication.Options

// DeactivateProcess deactivates the payload path towards every enabled
// replication agent.
type DeactivateProcess struct {
	label      string
	repo       repository.Repository
	replicator Replicator
	prepare    OptionsPreparer
	logger     *zap.Logger
}

func NewDeactivateProcess(repo repository.Repository, replicator Replicator, logger *zap.Logger) *DeactivateProcess {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeactivateProcess{
		label:      LabelDeactivate,
		repo:       repo,
		replicator: replicator,
		logger:     logger,
	}
}

func (p *DeactivateProcess) Label() string { return p.label }

func (p *DeactivateProcess) Execute(ctx context.Context, item domain.WorkItem, session Session, args MetaData) error {
	if item.PayloadType != domain.PayloadTypeJCRPath {
		return fmt.Errorf("%w: %s", ErrUnsupportedPayload, item.PayloadType)
	}

	path := item.Payload
	if _, ok, err := p.repo.Get(ctx, path); err != nil {
		return fmt.Errorf("load payload %s: %w", path, err)
	} else if !ok {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, path)
	}

	initiator := session.UserID
	if initiator == "" {
		initiator = item.Initiator
	}
	opts := replication.Options{Initiator: initiator}
	if p.prepare != nil {
		opts = p.prepare(opts, args)
	}

	result, err := p.replicator.Replicate(ctx, replication.ActionDeactivate, path, opts)
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", path, err)
	}

	p.logger.Info("deactivated",
		zap.String("work_item_id", item.ID),
		zap.String("path", path),
		zap.Int("agents", len(result.Outcomes)),
		zap.Bool("status_updated", result.StatusUpdated),
	)
	return nil
}
