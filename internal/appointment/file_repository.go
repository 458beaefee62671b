package appointment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hackgods/appointment-lifecycle/internal/filestore"
)

type fileState struct {
	Appointments []Appointment `json:"appointments"`
	Events       []EventLog    `json:"events"`
}

// FileRepository is a MemoryRepository whose full state is rewritten to a
// JSON file after every mutation.
type FileRepository struct {
	path string
	mu   sync.Mutex // serialises mutate+persist
	mem  *MemoryRepository
}

// NewFileRepository loads path if it exists. A file that exists but cannot be
// read or decoded is logged and replaced by an empty store.
func NewFileRepository(path string, logger *slog.Logger) (*FileRepository, error) {
	if err := filestore.EnsureDir(path); err != nil {
		return nil, err
	}

	var state fileState
	if err := filestore.Load(path, &state); err != nil {
		if !errors.Is(err, filestore.ErrNotExist) {
			logger.Warn("failed to read appointment store, starting fresh", "path", path, "error", err)
		}
		state = fileState{}
	}

	return &FileRepository{
		path: path,
		mem:  newMemoryRepositoryFrom(state.Appointments, state.Events),
	}, nil
}

func (r *FileRepository) persist() error {
	appts, events := r.mem.snapshot()
	if err := filestore.Save(r.path, fileState{Appointments: appts, Events: events}); err != nil {
		return fmt.Errorf("persist appointments: %w", err)
	}
	return nil
}

func (r *FileRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	created, err := r.mem.CreateAppointment(ctx, a)
	if err != nil {
		return nil, err
	}
	if err := r.persist(); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *FileRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	return r.mem.GetAppointmentByID(ctx, id)
}

func (r *FileRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	return r.mem.ListAppointments(ctx, f)
}

func (r *FileRepository) UpdateAppointment(ctx context.Context, id string, u Update) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updated, err := r.mem.UpdateAppointment(ctx, id, u)
	if err != nil {
		return nil, err
	}
	if err := r.persist(); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *FileRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.mem.InsertEvent(ctx, ev); err != nil {
		return err
	}
	return r.persist()
}

func (r *FileRepository) ListEvents(ctx context.Context, appointmentID string) ([]EventLog, error) {
	return r.mem.ListEvents(ctx, appointmentID)
}

func (r *FileRepository) EventCount() int {
	return r.mem.EventCount()
}
