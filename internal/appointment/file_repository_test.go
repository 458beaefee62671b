package appointment

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-lifecycle/internal/logs"
)

func TestFileRepository_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "appointments.json")
	ctx := context.Background()

	repo, err := NewFileRepository(path, logs.Discard())
	require.NoError(t, err)

	a := sampleAppointment("a1")
	a.Reason = strPtr("follow-up")
	_, err = repo.CreateAppointment(ctx, a)
	require.NoError(t, err)
	require.NoError(t, repo.InsertEvent(ctx, EventLog{
		AppointmentID: "a1",
		EventType:     EventAppointmentConfirmed,
		Payload:       json.RawMessage(`{"appointmentId":"a1"}`),
		CreatedAt:     a.CreatedAt,
	}))

	status := StatusCompleted
	_, err = repo.UpdateAppointment(ctx, "a1", Update{Status: &status})
	require.NoError(t, err)

	reopened, err := NewFileRepository(path, logs.Discard())
	require.NoError(t, err)

	got, err := reopened.GetAppointmentByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.True(t, a.ScheduledFor.Equal(got.ScheduledFor))
	require.NotNil(t, got.Reason)
	assert.Equal(t, "follow-up", *got.Reason)

	events, err := reopened.ListEvents(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"appointmentId":"a1"}`, string(events[0].Payload))
	assert.Equal(t, 1, reopened.EventCount())
}

func TestFileRepository_DocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	repo, err := NewFileRepository(path, logs.Discard())
	require.NoError(t, err)

	_, err = repo.CreateAppointment(context.Background(), sampleAppointment("a1"))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string][]map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc["appointments"], 1)
	assert.Equal(t, "CONFIRMED", doc["appointments"][0]["status"])
	assert.Nil(t, doc["appointments"][0]["reason"])
	assert.Empty(t, doc["events"])
}

func TestFileRepository_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	repo, err := NewFileRepository(path, logger)
	require.NoError(t, err)

	list, err := repo.ListAppointments(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Contains(t, buf.String(), "failed to read appointment store")
}

func TestFileRepository_MissingFileIsSilent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := NewFileRepository(path, logger)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestFileRepository_UpdateMissingLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.json")
	ctx := context.Background()

	repo, err := NewFileRepository(path, logs.Discard())
	require.NoError(t, err)
	_, err = repo.CreateAppointment(ctx, sampleAppointment("a1"))
	require.NoError(t, err)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	status := StatusCancelled
	_, err = repo.UpdateAppointment(ctx, "ghost", Update{Status: &status})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
