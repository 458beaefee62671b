package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-lifecycle/internal/notify"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

const (
	EventAppointmentConfirmed = "AppointmentConfirmed"
)

const (
	// ScheduleTolerance absorbs clock skew between client and server when
	// checking that an appointment is in the future.
	ScheduleTolerance = 60 * time.Second
	MaxReasonLength   = 500
	ListLimit         = 50
)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	emitter notify.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, emitter notify.Emitter, logger *slog.Logger) *Service {
	if locker == nil {
		locker = redisclient.NoopLocker{}
	}
	if emitter == nil {
		emitter = notify.NoopEmitter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		emitter: emitter,
		logger:  logger,
		nowFn:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

type CreateInput struct {
	PatientID    string
	ProviderID   string
	ScheduledFor string
	Reason       *string
}

type UpdateStatusInput struct {
	Status string
	Reason *string
}

type ListInput struct {
	PatientID  string
	ProviderID string
	Status     string
}

// CreateAppointment books a new appointment. It is always created CONFIRMED,
// recorded as an AppointmentConfirmed event and announced to the relay.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	now := s.nowFn()

	scheduledFor, reason, err := validateCreate(in, now)
	if err != nil {
		return nil, err
	}

	appt := Appointment{
		ID:           uuid.NewString(),
		PatientID:    strings.TrimSpace(in.PatientID),
		ProviderID:   strings.TrimSpace(in.ProviderID),
		ScheduledFor: scheduledFor,
		Status:       StatusConfirmed,
		Reason:       reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.CreateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	payload := ConfirmedPayload{
		AppointmentID: created.ID,
		PatientID:     created.PatientID,
		ProviderID:    created.ProviderID,
		ScheduledFor:  created.ScheduledFor,
	}
	if err := s.logEvent(ctx, created.ID, EventAppointmentConfirmed, payload, now); err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, EventAppointmentConfirmed, payload)

	return created, nil
}

// UpdateStatus moves an appointment to a new status. Setting the current
// status again returns the record untouched and records nothing.
func (s *Service) UpdateStatus(ctx context.Context, id string, in UpdateStatusInput) (*Appointment, error) {
	status, reason, err := validateUpdateStatus(in)
	if err != nil {
		return nil, err
	}

	var (
		result       *Appointment
		shouldNotify bool
		closed       ClosedPayload
	)

	err = s.locker.WithAppointmentLock(ctx, id, func(lockCtx context.Context) error {
		current, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		if current.Status == status {
			result = current
			return nil
		}

		now := s.nowFn()
		if !now.After(current.UpdatedAt) {
			now = current.UpdatedAt.Add(time.Microsecond)
		}

		update := Update{Status: &status, UpdatedAt: &now}
		if reason != nil {
			update.Reason = reason
		}

		updated, err := s.repo.UpdateAppointment(lockCtx, id, update)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("update appointment: %w", err)
		}

		transition := TransitionPayload{
			AppointmentID:  id,
			PreviousStatus: current.Status,
			NewStatus:      status,
		}
		if err := s.logEvent(lockCtx, id, status.EventType(), transition, now); err != nil {
			return err
		}

		result = updated
		if status.Notifies() {
			shouldNotify = true
			closed = ClosedPayload{
				AppointmentID:  id,
				PatientID:      current.PatientID,
				ProviderID:     current.ProviderID,
				ScheduledFor:   current.ScheduledFor,
				PreviousStatus: current.Status,
			}
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrAppointmentBeingUpdated
		}
		return nil, err
	}

	if shouldNotify {
		s.emitter.Emit(ctx, status.EventType(), closed)
	}

	return result, nil
}

// GetAppointment retrieves an appointment by its exact id
func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments returns the ListLimit soonest matching appointments,
// ordered by scheduled time. The status filter is case-insensitive.
func (s *Service) ListAppointments(ctx context.Context, in ListInput) ([]Appointment, error) {
	filter := Filter{
		PatientID:  in.PatientID,
		ProviderID: in.ProviderID,
	}
	if in.Status != "" {
		filter.Status = NormalizeStatus(in.Status)
	}

	appointments, err := s.repo.ListAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	sort.SliceStable(appointments, func(i, j int) bool {
		return appointments[i].ScheduledFor.Before(appointments[j].ScheduledFor)
	})
	if len(appointments) > ListLimit {
		appointments = appointments[:ListLimit]
	}
	return appointments, nil
}

// ListEvents returns the retained history of one appointment, oldest first.
func (s *Service) ListEvents(ctx context.Context, id string) ([]EventLog, error) {
	if _, err := s.GetAppointment(ctx, id); err != nil {
		return nil, err
	}

	events, err := s.repo.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID, eventType string, payload any, at time.Time) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	ev := EventLog{
		AppointmentID: appointmentID,
		EventType:     eventType,
		Payload:       data,
		CreatedAt:     at,
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log", "event_type", eventType, "appointment_id", appointmentID, "error", err)
		return fmt.Errorf("insert event %s: %w", eventType, err)
	}
	return nil
}

func validateCreate(in CreateInput, now time.Time) (time.Time, *string, error) {
	var details []string

	if strings.TrimSpace(in.PatientID) == "" {
		details = append(details, `"patientId" is required`)
	}
	if strings.TrimSpace(in.ProviderID) == "" {
		details = append(details, `"providerId" is required`)
	}

	var scheduledFor time.Time
	switch raw := strings.TrimSpace(in.ScheduledFor); {
	case raw == "":
		details = append(details, `"scheduledFor" is required`)
	default:
		t, err := ParseTimestamp(raw)
		switch {
		case err != nil:
			details = append(details, "scheduledFor must be a valid ISO 8601 timestamp")
		case t.Before(now.Add(-ScheduleTolerance)):
			details = append(details, "scheduledFor must be a future datetime (60s tolerance)")
		default:
			scheduledFor = t
		}
	}

	reason, msg := normalizeReason(in.Reason)
	if msg != "" {
		details = append(details, msg)
	}

	if len(details) > 0 {
		return time.Time{}, nil, &ValidationError{Details: details}
	}
	return scheduledFor, reason, nil
}

func validateUpdateStatus(in UpdateStatusInput) (AppointmentStatus, *string, error) {
	var details []string

	status := AppointmentStatus(in.Status)
	switch {
	case in.Status == "":
		details = append(details, `"status" is required`)
	case !status.Valid():
		details = append(details, `"status" must be one of [CONFIRMED, CANCELLED, COMPLETED, NO_SHOW]`)
	}

	reason, msg := normalizeReason(in.Reason)
	if msg != "" {
		details = append(details, msg)
	}

	if len(details) > 0 {
		return "", nil, &ValidationError{Details: details}
	}
	return status, reason, nil
}

// normalizeReason maps an empty reason to nil so that it never overwrites a
// previous value.
func normalizeReason(reason *string) (*string, string) {
	if reason == nil || *reason == "" {
		return nil, ""
	}
	if utf8.RuneCountInString(*reason) > MaxReasonLength {
		return nil, fmt.Sprintf(`"reason" length must be less than or equal to %d characters long`, MaxReasonLength)
	}
	r := *reason
	return &r, ""
}

var timestampLayouts = buildTimestampLayouts()

// buildTimestampLayouts covers ISO 8601 extended dates with a "T" or space
// separator, optional seconds and fraction, and an offset written as Z,
// +hh:mm, +hhmm, +hh or left out.
func buildTimestampLayouts() []string {
	zones := []string{"Z07:00", "Z0700", "Z07", ""}
	clocks := []string{"15:04:05.999999999", "15:04"}

	var layouts []string
	for _, sep := range []string{"T", " "} {
		for _, clock := range clocks {
			for _, zone := range zones {
				layouts = append(layouts, "2006-01-02"+sep+clock+zone)
			}
		}
	}
	return append(layouts, "2006-01-02")
}

// ParseTimestamp accepts ISO 8601 date-times with or without offset and
// fractional seconds, plus plain dates. Values without an offset are UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
