package appointment

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentBeingUpdated = errors.New("appointment is currently being updated, please retry")
)

// ValidationError carries one message per rejected field.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// Repository is the durable store behind the service. Every method returns
// only after the change is persisted.
type Repository interface {
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id string) (*Appointment, error)

	// ListAppointments applies the filter only; ordering and limits are up to
	// the caller.
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)

	// UpdateAppointment returns ErrAppointmentNotFound without side effects
	// when id is unknown.
	UpdateAppointment(ctx context.Context, id string, u Update) (*Appointment, error)

	// Event log, bounded to the most recent ringlog.DefaultCapacity entries
	InsertEvent(ctx context.Context, ev EventLog) error
	ListEvents(ctx context.Context, appointmentID string) ([]EventLog, error)
}
