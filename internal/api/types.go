package api

import (
	"encoding/json"
	"time"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/relay"
)

type CreateAppointmentRequest struct {
	PatientID    string  `json:"patientId"`
	ProviderID   string  `json:"providerId"`
	ScheduledFor string  `json:"scheduledFor"`
	Reason       *string `json:"reason"`
}

type CreateAppointmentResponse struct {
	ID        string                        `json:"id"`
	Status    appointment.AppointmentStatus `json:"status"`
	CreatedAt time.Time                     `json:"createdAt"`
}

type UpdateStatusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason"`
}

type CreateNotificationRequest struct {
	Type            string          `json:"type"`
	Channel         *string         `json:"channel"`
	Recipient       *string         `json:"recipient"`
	Payload         json.RawMessage `json:"payload"`
	Source          string          `json:"source"`
	OverwriteStatus *string         `json:"overwriteStatus"`
}

type CreateNotificationResponse = relay.Accepted

type ErrorResponse struct {
	Message string   `json:"message"`
	Error   string   `json:"error,omitempty"`
	Details []string `json:"details,omitempty"`
}
