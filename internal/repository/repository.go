package repository

import (
	"context"
	"errors"

	"github.com/dunamismax/transformd/internal/domain"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrNoBinary = errors.New("resource has no binary")
)

type Repository interface {
	Get(ctx context.Context, path string) (domain.Resource, bool, error)
	// Children lists direct children in creation order.
	Children(ctx context.Context, path string) ([]domain.Resource, error)
	ReadBinary(ctx context.Context, res domain.Resource) ([]byte, error)
	SetReplicationStatus(ctx context.Context, path string, status domain.ReplicationStatus) error
}

// Writer is implemented by repositories that accept new content.
type Writer interface {
	Put(ctx context.Context, res domain.Resource, binary []byte) error
}

// Child fetches parent/rel.
func Child(ctx context.Context, repo Repository, parent string, rel ...string) (domain.Resource, bool, error) {
	return repo.Get(ctx, domain.ChildPath(parent, rel...))
}
