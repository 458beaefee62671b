package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/appointment-lifecycle/internal/relay"
)

func createNotificationHandler(svc *relay.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateNotificationRequest
		if !readBody(w, r, &req) {
			return
		}

		accepted, err := svc.Accept(r.Context(), relay.AcceptInput{
			Type:            req.Type,
			Channel:         req.Channel,
			Recipient:       req.Recipient,
			Payload:         req.Payload,
			Source:          req.Source,
			OverwriteStatus: req.OverwriteStatus,
		})
		if err != nil {
			handleNotificationError(w, r, logger, err, "Unable to queue notification")
			return
		}
		writeJSON(w, http.StatusAccepted, accepted)
	}
}

func getNotificationHandler(svc *relay.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.GetNotification(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleNotificationError(w, r, logger, err, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func listNotificationsHandler(svc *relay.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		list, err := svc.ListNotifications(r.Context(), relay.ListInput{
			Type:      q.Get("type"),
			Recipient: q.Get("recipient"),
			Status:    q.Get("status"),
		})
		if err != nil {
			handleNotificationError(w, r, logger, err, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleNotificationError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	var verr *relay.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Details)
	case errors.Is(err, relay.ErrNotificationNotFound):
		writeError(w, http.StatusNotFound, "notification_not_found", "Notification not found")
	default:
		writeInternal(w, r, logger, fallback, err)
	}
}
