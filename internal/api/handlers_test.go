package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/logs"
	"github.com/hackgods/appointment-lifecycle/internal/notify"
	redisclient "github.com/hackgods/appointment-lifecycle/internal/redis"
)

type busyLocker struct{}

func (busyLocker) WithAppointmentLock(context.Context, string, func(context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

func newAppointmentServer(t *testing.T, locker redisclient.Locker, emitter notify.Emitter) (*httptest.Server, *appointment.MemoryRepository) {
	t.Helper()
	repo := appointment.NewMemoryRepository()
	svc := appointment.NewService(repo, locker, emitter, logs.Discard())
	srv := httptest.NewServer(NewAppointmentRouter(AppointmentRouterConfig{
		Service: svc,
		Logger:  logs.Discard(),
		Env:     "test",
	}))
	t.Cleanup(srv.Close)
	return srv, repo
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func createBody(at time.Time) string {
	b, _ := json.Marshal(map[string]string{
		"patientId":    "patient-1",
		"providerId":   "provider-1",
		"scheduledFor": at.UTC().Format(time.RFC3339),
	})
	return string(b)
}

func TestHealth(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	resp, body := do(t, http.MethodGet, srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"appointment-service"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAppointmentLifecycle(t *testing.T) {
	srv, repo := newAppointmentServer(t, nil, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/appointments", createBody(time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var created map[string]any
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Len(t, created, 3)
	assert.Equal(t, "CONFIRMED", created["status"])
	assert.NotEmpty(t, created["createdAt"])
	id := created["id"].(string)

	resp, first := do(t, http.MethodPatch, srv.URL+"/appointments/"+id+"/status", `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(first))

	var cancelled appointment.Appointment
	require.NoError(t, json.Unmarshal(first, &cancelled))
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.Reason)
	assert.Equal(t, 2, repo.EventCount())

	resp, second := do(t, http.MethodPatch, srv.URL+"/appointments/"+id+"/status", `{"status":"CANCELLED"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(first), string(second))
	assert.Equal(t, 2, repo.EventCount())

	resp, body = do(t, http.MethodGet, srv.URL+"/appointments/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, string(first), string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/appointments/"+id+"/events", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(body, &events))
	require.Len(t, events, 2)
	assert.Equal(t, "AppointmentConfirmed", events[0]["eventType"])
	assert.Equal(t, "AppointmentCANCELLED", events[1]["eventType"])
}

func TestCreateAppointment_PastDate(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/appointments", createBody(time.Now().Add(-10*time.Minute)))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, "Validation failed", er.Message)
	require.Len(t, er.Details, 1)
	assert.Contains(t, er.Details[0], "future")
}

func TestCreateAppointment_BadBodies(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"patientId":`, "request body must be valid JSON"},
		{"unknown field", `{"patientId":"p","providerId":"d","scheduledFor":"2099-01-01T00:00:00Z","room":"4"}`, `"room" is not allowed`},
		{"wrong type", `{"patientId":7}`, `"patientId" must be of type string`},
		{"array body", `[]`, "request body must be a JSON object"},
		{"empty object", `{}`, `"patientId" is required`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/appointments", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var er ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, "Validation failed", er.Message)
			assert.Contains(t, er.Details, tt.want)
		})
	}
}

func TestReadBody_TooLarge(t *testing.T) {
	big := `{"patientId":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(big))
	rec := httptest.NewRecorder()

	var dst CreateAppointmentRequest
	assert.False(t, readBody(rec, req, &dst))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAppointmentNotFound(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/appointments/missing", ""},
		{http.MethodPatch, "/appointments/missing/status", `{"status":"CANCELLED"}`},
		{http.MethodGet, "/appointments/missing/events", ""},
	} {
		resp, body := do(t, tc.method, srv.URL+tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, tc.path)
		assert.JSONEq(t, `{"message":"Appointment not found","error":"appointment_not_found"}`, string(body))
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	resp, body := do(t, http.MethodPost, srv.URL+"/appointments", createBody(time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created CreateAppointmentResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = do(t, http.MethodPatch, srv.URL+"/appointments/"+created.ID+"/status", `{"status":"LATE"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "must be one of")
}

func TestUpdateStatus_LockBusy(t *testing.T) {
	srv, _ := newAppointmentServer(t, busyLocker{}, nil)

	resp, body := do(t, http.MethodPatch, srv.URL+"/appointments/a1/status", `{"status":"CANCELLED"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "appointment_being_updated")
}

func TestListAppointments_LowercaseStatus(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	var ids []string
	for i := 0; i < 2; i++ {
		resp, body := do(t, http.MethodPost, srv.URL+"/appointments", createBody(time.Now().Add(time.Duration(i+1)*time.Hour)))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var created CreateAppointmentResponse
		require.NoError(t, json.Unmarshal(body, &created))
		ids = append(ids, created.ID)
	}
	resp, _ := do(t, http.MethodPatch, srv.URL+"/appointments/"+ids[1]+"/status", `{"status":"CANCELLED","reason":"patient request"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/appointments?status=cancelled", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []appointment.Appointment
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, ids[1], list[0].ID)
	require.NotNil(t, list[0].Reason)
	assert.Equal(t, "patient request", *list[0].Reason)

	resp, body = do(t, http.MethodGet, srv.URL+"/appointments/?patientId=nobody", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestNotificationFailureDoesNotChangeResponse(t *testing.T) {
	relaySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relaySrv.Close()

	emitter := notify.NewHTTPEmitter(relaySrv.URL, "appointment-service", 200*time.Millisecond, logs.Discard())
	srv, _ := newAppointmentServer(t, nil, emitter)

	resp, body := do(t, http.MethodPost, srv.URL+"/appointments", createBody(time.Now().Add(time.Hour)))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created CreateAppointmentResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, appointment.StatusConfirmed, created.Status)

	resp, body = do(t, http.MethodPatch, srv.URL+"/appointments/"+created.ID+"/status", `{"status":"NO_SHOW"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"NO_SHOW"`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, emitter.Close(ctx))
}

func TestReadiness(t *testing.T) {
	down := func(context.Context) error { return errors.New("connection refused") }
	up := func(context.Context) error { return nil }

	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
	}{
		{"no deps", nil, http.StatusOK, "ok"},
		{"all up", []Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: up}}, http.StatusOK, "ok"},
		{"lock down", []Check{{Name: "postgres", Critical: true, Ping: up}, {Name: "redis", Ping: down}}, http.StatusOK, "degraded"},
		{"store down", []Check{{Name: "postgres", Critical: true, Ping: down}, {Name: "redis", Ping: up}}, http.StatusServiceUnavailable, "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("appointment-service", "test", tt.checks...)
			rec := httptest.NewRecorder()
			h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var got ReadinessResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Len(t, got.Dependencies, len(tt.checks))
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(logs.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error","error":"internal_error"}`, rec.Body.String())
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv, _ := newAppointmentServer(t, nil, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}
