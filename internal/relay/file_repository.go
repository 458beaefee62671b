package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hackgods/appointment-lifecycle/internal/filestore"
	"github.com/hackgods/appointment-lifecycle/internal/ringlog"
)

type fileState struct {
	Notifications []Notification `json:"notifications"`
}

// FileRepository rewrites the whole notification log to a JSON file on every
// accepted notification.
type FileRepository struct {
	path string
	mu   sync.Mutex
	mem  *MemoryRepository
}

func NewFileRepository(path string, logger *slog.Logger) (*FileRepository, error) {
	if err := filestore.EnsureDir(path); err != nil {
		return nil, err
	}

	var state fileState
	if err := filestore.Load(path, &state); err != nil {
		if !errors.Is(err, filestore.ErrNotExist) {
			logger.Warn("failed to read notification store, starting fresh", "path", path, "error", err)
		}
		state = fileState{}
	}

	return &FileRepository{
		path: path,
		mem:  newMemoryRepositoryFrom(ringlog.DefaultCapacity, state.Notifications),
	}, nil
}

func (r *FileRepository) CreateNotification(ctx context.Context, n Notification) (*Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, err := r.mem.CreateNotification(ctx, n)
	if err != nil {
		return nil, err
	}
	if err := filestore.Save(r.path, fileState{Notifications: r.mem.snapshot()}); err != nil {
		return nil, fmt.Errorf("persist notifications: %w", err)
	}
	return created, nil
}

func (r *FileRepository) GetNotificationByID(ctx context.Context, id string) (*Notification, error) {
	return r.mem.GetNotificationByID(ctx, id)
}

func (r *FileRepository) ListNotifications(ctx context.Context, f Filter) ([]Notification, error) {
	return r.mem.ListNotifications(ctx, f)
}

func (r *FileRepository) Len() int {
	return r.mem.Len()
}
