package appointment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAppointment(id string) Appointment {
	at := time.Date(2030, 3, 1, 8, 30, 0, 0, time.UTC)
	return Appointment{
		ID:           id,
		PatientID:    "patient-" + id,
		ProviderID:   "provider-1",
		ScheduledFor: at,
		Status:       StatusConfirmed,
		CreatedAt:    at.Add(-24 * time.Hour),
		UpdatedAt:    at.Add(-24 * time.Hour),
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.CreateAppointment(ctx, sampleAppointment("a1"))
	require.NoError(t, err)

	got, err := repo.GetAppointmentByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "patient-a1", got.PatientID)

	_, err = repo.CreateAppointment(ctx, sampleAppointment("a1"))
	assert.Error(t, err)

	_, err = repo.GetAppointmentByID(ctx, "A1")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := sampleAppointment("a1")
	a.Reason = strPtr("original")
	_, err := repo.CreateAppointment(ctx, a)
	require.NoError(t, err)

	got, err := repo.GetAppointmentByID(ctx, "a1")
	require.NoError(t, err)
	*got.Reason = "mutated"
	got.Status = StatusCancelled

	again, err := repo.GetAppointmentByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "original", *again.Reason)
	assert.Equal(t, StatusConfirmed, again.Status)
}

func TestMemoryRepository_UpdateMissingHasNoSideEffect(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	status := StatusCancelled
	_, err := repo.UpdateAppointment(ctx, "ghost", Update{Status: &status})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	list, err := repo.ListAppointments(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryRepository_UpdatePartial(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	a := sampleAppointment("a1")
	a.Reason = strPtr("keep me")
	_, err := repo.CreateAppointment(ctx, a)
	require.NoError(t, err)

	status := StatusNoShow
	later := a.UpdatedAt.Add(time.Minute)
	updated, err := repo.UpdateAppointment(ctx, "a1", Update{Status: &status, UpdatedAt: &later})
	require.NoError(t, err)

	assert.Equal(t, StatusNoShow, updated.Status)
	assert.Equal(t, later, updated.UpdatedAt)
	assert.Equal(t, "keep me", *updated.Reason)
	assert.Equal(t, a.CreatedAt, updated.CreatedAt)
}

func TestMemoryRepository_ListFilters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		a := sampleAppointment(fmt.Sprintf("a%d", i))
		if i%2 == 1 {
			a.ProviderID = "provider-2"
			a.Status = StatusCompleted
		}
		_, err := repo.CreateAppointment(ctx, a)
		require.NoError(t, err)
	}

	list, err := repo.ListAppointments(ctx, Filter{ProviderID: "provider-2"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a1", list[0].ID)
	assert.Equal(t, "a3", list[1].ID)

	list, err = repo.ListAppointments(ctx, Filter{ProviderID: "provider-2", Status: StatusConfirmed})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryRepository_EventsPerAppointment(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"a1", "a2", "a1"} {
		require.NoError(t, repo.InsertEvent(ctx, EventLog{
			AppointmentID: id,
			EventType:     EventAppointmentConfirmed,
			Payload:       json.RawMessage(`{}`),
		}))
	}

	events, err := repo.ListEvents(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 3, repo.EventCount())
}
