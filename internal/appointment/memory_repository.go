package appointment

import (
	"context"
	"fmt"
	"sync"

	"github.com/hackgods/appointment-lifecycle/internal/ringlog"
)

// MemoryRepository keeps everything in process memory. It backs tests and
// STORE_DRIVER=memory, and is the working set of FileRepository.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[string]Appointment
	order        []string // insertion order
	events       *ringlog.Ring[EventLog]
}

func NewMemoryRepository() *MemoryRepository {
	return newMemoryRepositoryFrom(nil, nil)
}

func newMemoryRepositoryFrom(appts []Appointment, events []EventLog) *MemoryRepository {
	r := &MemoryRepository{
		appointments: make(map[string]Appointment, len(appts)),
		events:       ringlog.FromSlice(ringlog.DefaultCapacity, events),
	}
	for _, a := range appts {
		if _, dup := r.appointments[a.ID]; dup {
			continue
		}
		r.appointments[a.ID] = a.clone()
		r.order = append(r.order, a.ID)
	}
	return r
}

func (r *MemoryRepository) CreateAppointment(_ context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.appointments[a.ID]; exists {
		return nil, fmt.Errorf("appointment %s already exists", a.ID)
	}

	r.appointments[a.ID] = a.clone()
	r.order = append(r.order, a.ID)

	out := a.clone()
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := a.clone()
	return &out, nil
}

func (r *MemoryRepository) ListAppointments(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []Appointment{}
	for _, id := range r.order {
		a := r.appointments[id]
		if f.Matches(a) {
			result = append(result, a.clone())
		}
	}
	return result, nil
}

func (r *MemoryRepository) UpdateAppointment(_ context.Context, id string, u Update) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	u.apply(&a)
	r.appointments[id] = a

	out := a.clone()
	return &out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events.Push(ev)
	return nil
}

func (r *MemoryRepository) ListEvents(_ context.Context, appointmentID string) ([]EventLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := []EventLog{}
	r.events.Each(func(ev EventLog) bool {
		if ev.AppointmentID == appointmentID {
			result = append(result, ev)
		}
		return true
	})
	return result, nil
}

// EventCount is the number of retained events across all appointments.
func (r *MemoryRepository) EventCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.events.Len()
}

// snapshot copies the full state in insertion order for persistence.
func (r *MemoryRepository) snapshot() ([]Appointment, []EventLog) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	appts := make([]Appointment, 0, len(r.order))
	for _, id := range r.order {
		appts = append(appts, r.appointments[id].clone())
	}
	return appts, r.events.Items()
}
