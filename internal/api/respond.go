package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// maxBodyBytes caps request bodies at 100kb.
const maxBodyBytes = 100 << 10

var errBodyTooLarge = errors.New("request entity too large")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Message: message, Error: code})
}

func writeValidation(w http.ResponseWriter, details []string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Message: "Validation failed",
		Error:   "validation_failed",
		Details: details,
	})
}

// decodeBody reads a single JSON object into dst and rejects unknown fields.
// Decode problems come back as validation details.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) ([]string, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil {
		if dec.More() {
			return []string{"request body must contain a single JSON object"}, nil
		}
		return nil, nil
	}

	var (
		syntaxErr  *json.SyntaxError
		typeErr    *json.UnmarshalTypeError
		maxByteErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &maxByteErr):
		return nil, errBodyTooLarge
	case errors.Is(err, io.EOF):
		// empty body, field validation reports what is missing
		return nil, nil
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return []string{"request body must be valid JSON"}, nil
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return []string{"request body must be a JSON object"}, nil
		}
		return []string{fmt.Sprintf("%q must be of type %s", typeErr.Field, typeErr.Type.Kind())}, nil
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return []string{field + " is not allowed"}, nil
	}
	return nil, err
}

// readBody decodes the request or writes the failure response. It reports
// whether the handler should continue.
func readBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	details, err := decodeBody(w, r, dst)
	switch {
	case errors.Is(err, errBodyTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request entity too large")
		return false
	case err != nil:
		writeValidation(w, []string{err.Error()})
		return false
	case len(details) > 0:
		writeValidation(w, details)
		return false
	}
	return true
}

func writeInternal(w http.ResponseWriter, r *http.Request, logger *slog.Logger, message string, err error) {
	logger.Error(message,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error", message)
}
