package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/hackgods/appointment-lifecycle/internal/ringlog"
)

// MemoryRepository keeps the notification log in a ring of ids backed by a
// map. An id pushed out of the ring is removed from the map in the same step.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]Notification
	order *ringlog.Ring[string]
}

func NewMemoryRepository() *MemoryRepository {
	return newMemoryRepositoryFrom(ringlog.DefaultCapacity, nil)
}

func newMemoryRepositoryFrom(capacity int, existing []Notification) *MemoryRepository {
	r := &MemoryRepository{
		byID:  make(map[string]Notification),
		order: ringlog.New[string](capacity),
	}
	for _, n := range existing {
		if _, dup := r.byID[n.ID]; dup {
			continue
		}
		r.push(n)
	}
	return r
}

func (r *MemoryRepository) push(n Notification) {
	if evicted, ok := r.order.Push(n.ID); ok {
		delete(r.byID, evicted)
	}
	r.byID[n.ID] = n.clone()
}

func (r *MemoryRepository) CreateNotification(_ context.Context, n Notification) (*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[n.ID]; exists {
		return nil, fmt.Errorf("notification %s already exists", n.ID)
	}
	r.push(n)

	out := n.clone()
	return &out, nil
}

func (r *MemoryRepository) GetNotificationByID(_ context.Context, id string) (*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	out := n.clone()
	return &out, nil
}

func (r *MemoryRepository) ListNotifications(_ context.Context, f Filter) ([]Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Notification{}
	r.order.Each(func(id string) bool {
		if n := r.byID[id]; f.Matches(n) {
			result = append(result, n.clone())
		}
		return true
	})
	return result, nil
}

func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.order.Len()
}

func (r *MemoryRepository) snapshot() []Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Notification, 0, r.order.Len())
	r.order.Each(func(id string) bool {
		out = append(out, r.byID[id].clone())
		return true
	})
	return out
}
