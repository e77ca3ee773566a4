package repository

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/dunamismax/transformd/internal/domain"
)

type MemoryRepository struct {
	mu        sync.RWMutex
	resources map[string]domain.Resource
	order     []string
	binaries  map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		resources: make(map[string]domain.Resource),
		binaries:  make(map[string][]byte),
	}
}

func (r *MemoryRepository) Put(_ context.Context, res domain.Resource, binary []byte) error {
	if res.Path == "" || res.Path[0] != '/' {
		return fmt.Errorf("resource path must be absolute: %q", res.Path)
	}
	res.Path = path.Clean(res.Path)
	if binary != nil && res.BinaryKey == "" {
		res.BinaryKey = res.Path
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.resources[res.Path]; !ok {
		r.order = append(r.order, res.Path)
	}
	r.resources[res.Path] = res
	if binary != nil {
		r.binaries[res.BinaryKey] = append([]byte(nil), binary...)
	}
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, p string) (domain.Resource, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[path.Clean(p)]
	return res, ok, nil
}

func (r *MemoryRepository) Children(_ context.Context, p string) ([]domain.Resource, error) {
	p = path.Clean(p)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Resource
	for _, candidate := range r.order {
		if domain.ParentPath(candidate) == p {
			out = append(out, r.resources[candidate])
		}
	}
	return out, nil
}

func (r *MemoryRepository) ReadBinary(_ context.Context, res domain.Resource) ([]byte, error) {
	if !res.HasBinary() {
		return nil, fmt.Errorf("%w: %s", ErrNoBinary, res.Path)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	data, ok := r.binaries[res.BinaryKey]
	if !ok {
		return nil, fmt.Errorf("%w: binary %s", ErrNotFound, res.BinaryKey)
	}
	return append([]byte(nil), data...), nil
}

func (r *MemoryRepository) SetReplicationStatus(_ context.Context, p string, status domain.ReplicationStatus) error {
	p = path.Clean(p)
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.resources[p]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	res.Replication = &status
	r.resources[p] = res
	return nil
}
