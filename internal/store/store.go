package store

import (
	"context"
	"errors"

	"github.com/dunamismax/transformd/internal/domain"
)

var ErrWorkItemNotFound = errors.New("work item not found")

type WorkItemStore interface {
	Create(ctx context.Context, item domain.WorkItem) error
	Get(ctx context.Context, id string) (domain.WorkItem, bool, error)
	// UpdateStatus sets status and error message; errMsg is cleared for
	// non-failed states.
	UpdateStatus(ctx context.Context, id, status, errMsg string) (domain.WorkItem, error)
}
