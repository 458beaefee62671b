package appointment

import (
	"encoding/json"
	"strings"
	"time"
)

type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

// Statuses is the full set of legal statuses. Every status is reachable from
// every other one; there is no transition graph beyond membership.
var Statuses = []AppointmentStatus{
	StatusConfirmed,
	StatusCancelled,
	StatusCompleted,
	StatusNoShow,
}

func (s AppointmentStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Notifies reports whether entering s triggers a notification attempt.
func (s AppointmentStatus) Notifies() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// EventType is the event recorded when an appointment enters s.
func (s AppointmentStatus) EventType() string {
	return "Appointment" + string(s)
}

// NormalizeStatus uppercases a status coming from a query string.
func NormalizeStatus(raw string) AppointmentStatus {
	return AppointmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
}

type Appointment struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patientId"`
	ProviderID   string            `json:"providerId"`
	ScheduledFor time.Time         `json:"scheduledFor"`
	Status       AppointmentStatus `json:"status"`
	Reason       *string           `json:"reason"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (a Appointment) clone() Appointment {
	if a.Reason != nil {
		r := *a.Reason
		a.Reason = &r
	}
	return a
}

// Filter is a conjunction of equality matches; empty fields match anything.
type Filter struct {
	PatientID  string
	ProviderID string
	Status     AppointmentStatus
}

func (f Filter) Matches(a Appointment) bool {
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.ProviderID != "" && a.ProviderID != f.ProviderID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

// Update is a partial update; nil fields are left untouched.
type Update struct {
	Status    *AppointmentStatus
	Reason    *string
	UpdatedAt *time.Time
}

func (u Update) apply(a *Appointment) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Reason != nil {
		r := *u.Reason
		a.Reason = &r
	}
	if u.UpdatedAt != nil {
		a.UpdatedAt = *u.UpdatedAt
	}
}

type EventLog struct {
	AppointmentID string          `json:"appointmentId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ConfirmedPayload is recorded and sent when an appointment is created.
type ConfirmedPayload struct {
	AppointmentID string    `json:"appointmentId"`
	PatientID     string    `json:"patientId"`
	ProviderID    string    `json:"providerId"`
	ScheduledFor  time.Time `json:"scheduledFor"`
}

// TransitionPayload is recorded for every accepted status change.
type TransitionPayload struct {
	AppointmentID  string            `json:"appointmentId"`
	PreviousStatus AppointmentStatus `json:"previousStatus"`
	NewStatus      AppointmentStatus `json:"newStatus"`
}

// ClosedPayload is sent to the relay when an appointment is cancelled,
// completed or marked as a no-show.
type ClosedPayload struct {
	AppointmentID  string            `json:"appointmentId"`
	PatientID      string            `json:"patientId"`
	ProviderID     string            `json:"providerId"`
	ScheduledFor   time.Time         `json:"scheduledFor"`
	PreviousStatus AppointmentStatus `json:"previousStatus"`
}
