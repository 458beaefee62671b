package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-lifecycle/internal/ringlog"
)

type PgRepository struct {
	pool          *pgxpool.Pool
	eventCapacity int
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool, eventCapacity: ringlog.DefaultCapacity}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS appointments (
	id            TEXT PRIMARY KEY,
	patient_id    TEXT NOT NULL,
	provider_id   TEXT NOT NULL,
	scheduled_for TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id);
CREATE INDEX IF NOT EXISTS appointments_provider_idx ON appointments (provider_id);
CREATE INDEX IF NOT EXISTS appointments_status_idx ON appointments (status);

CREATE TABLE IF NOT EXISTS event_logs (
	id             BIGSERIAL PRIMARY KEY,
	appointment_id TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS event_logs_appointment_idx ON event_logs (appointment_id, id);
`

// EnsureSchema creates the tables if they are missing.
func (r *PgRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Helpers

const appointmentColumns = `id, patient_id, provider_id, scheduled_for, status, reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	var reason *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.ScheduledFor,
		&status,
		&reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	a.Reason = reason
	a.ScheduledFor = a.ScheduledFor.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

// Interface methods

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProviderID, a.ScheduledFor, string(a.Status), a.Reason, a.CreatedAt, a.UpdatedAt)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	var where []string
	var args []any

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	add("patient_id", f.PatientID)
	add("provider_id", f.ProviderID)
	add("status", string(f.Status))

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id string, u Update) (*Appointment, error) {
	var status *string
	if u.Status != nil {
		s := string(*u.Status)
		status = &s
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = COALESCE($2, status),
		    reason = COALESCE($3, reason),
		    updated_at = COALESCE($4, updated_at)
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id, status, u.Reason, u.UpdatedAt)

	return scanAppointment(row)
}

// InsertEvent appends ev and trims the log to the newest eventCapacity rows in
// the same transaction.
func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin event tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO event_logs (appointment_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.AppointmentID, ev.EventType, []byte(ev.Payload), nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM event_logs
		WHERE id <= (
			SELECT id FROM event_logs ORDER BY id DESC OFFSET $1 LIMIT 1
		)
	`, r.eventCapacity)
	if err != nil {
		return fmt.Errorf("trim event log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event tx: %w", err)
	}
	return nil
}

func (r *PgRepository) ListEvents(ctx context.Context, appointmentID string) ([]EventLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT appointment_id, event_type, payload, created_at
		FROM event_logs
		WHERE appointment_id = $1
		ORDER BY id
	`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	result := []EventLog{}
	for rows.Next() {
		var ev EventLog
		var payload []byte
		if err := rows.Scan(&ev.AppointmentID, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		ev.CreatedAt = ev.CreatedAt.UTC()
		result = append(result, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
