package store

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/dunamismax/transformd/internal/domain"
)

type MemoryWorkItemStore struct {
	mu    sync.RWMutex
	items map[string]domain.WorkItem
}

func NewMemoryWorkItemStore() *MemoryWorkItemStore {
	return &MemoryWorkItemStore{
		items: make(map[string]domain.WorkItem),
	}
}

func (s *MemoryWorkItemStore) Create(_ context.Context, item domain.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[item.ID]; exists {
		return fmt.Errorf("work item %s already exists", item.ID)
	}
	item.Args = maps.Clone(item.Args)
	s.items[item.ID] = item
	return nil
}

func (s *MemoryWorkItemStore) Get(_ context.Context, id string) (domain.WorkItem, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	item.Args = maps.Clone(item.Args)
	return item, ok, nil
}

func (s *MemoryWorkItemStore) UpdateStatus(_ context.Context, id, status, errMsg string) (domain.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.WorkItem{}, ErrWorkItemNotFound
	}

	item.Status = status
	item.Error = errorFor(status, errMsg)
	item.UpdatedAt = time.Now().UTC()
	s.items[id] = item
	item.Args = maps.Clone(item.Args)
	return item, nil
}

func errorFor(status, errMsg string) string {
	if status != domain.WorkItemStatusFailed {
		return ""
	}
	return errMsg
}
