package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
)

func createAppointmentHandler(svc *appointment.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !readBody(w, r, &req) {
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateInput{
			PatientID:    req.PatientID,
			ProviderID:   req.ProviderID,
			ScheduledFor: req.ScheduledFor,
			Reason:       req.Reason,
		})
		if err != nil {
			handleAppointmentError(w, r, logger, err, "Unable to create appointment")
			return
		}

		writeJSON(w, http.StatusCreated, CreateAppointmentResponse{
			ID:        appt.ID,
			Status:    appt.Status,
			CreatedAt: appt.CreatedAt,
		})
	}
}

func getAppointmentHandler(svc *appointment.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleAppointmentError(w, r, logger, err, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func listAppointmentsHandler(svc *appointment.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := svc.ListAppointments(r.Context(), appointment.ListInput{
			PatientID:  q.Get("patientId"),
			ProviderID: q.Get("providerId"),
			Status:     q.Get("status"),
		})
		if err != nil {
			handleAppointmentError(w, r, logger, err, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func updateStatusHandler(svc *appointment.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateStatusRequest
		if !readBody(w, r, &req) {
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), appointment.UpdateStatusInput{
			Status: req.Status,
			Reason: req.Reason,
		})
		if err != nil {
			handleAppointmentError(w, r, logger, err, "Unable to update appointment")
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func listEventsHandler(svc *appointment.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleAppointmentError(w, r, logger, err, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, events)
	}
}

func handleAppointmentError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var verr *appointment.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Details)
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", "Appointment not found")
	case errors.Is(err, appointment.ErrAppointmentBeingUpdated):
		writeError(w, http.StatusConflict, "appointment_being_updated", "Appointment is currently being updated, please retry shortly")
	default:
		writeInternal(w, r, logger, fallback, err)
	}
}
