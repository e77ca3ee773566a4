package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dunamismax/transformd/internal/domain"
	"github.com/dunamismax/transformd/internal/replication"
)

var (
	ErrUnsupportedPayload = errors.New("unsupported payload type")
	ErrUnknownProcess     = errors.New("unknown workflow process")
	ErrResourceNotFound   = errors.New("payload resource not found")
)

// Session identifies who a step runs on behalf of.
type Session struct {
	UserID string
}

type Process interface {
	Label() string
	Execute(ctx context.Context, item domain.WorkItem, session Session, args MetaData) error
}

// Replicator is the part of replication.Replicator the processes use.
type Replicator interface {
	Replicate(ctx context.Context, action replication.Action, path string, opts replication.Options) (replication.Result, error)
}

// Registry maps process labels to implementations.
type Registry struct {
	mu        sync.RWMutex
	processes map[string]Process
}

func NewRegistry(processes ...Process) *Registry {
	r := &Registry{processes: make(map[string]Process)}
	for _, p := range processes {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processes[p.Label()] = p
}

func (r *Registry) Lookup(label string) (Process, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.processes[strings.TrimSpace(label)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProcess, label)
	}
	return p, nil
}

func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.processes))
	for label := range r.processes {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
