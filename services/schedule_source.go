package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// ScheduleSource supplies the appointments for a working day
type ScheduleSource interface {
	LoadAppointments(ctx context.Context, day time.Time) ([]db.Appointment, error)
}

// StaticScheduleSource serves a fixed list, ignoring the day
type StaticScheduleSource []db.Appointment

func (s StaticScheduleSource) LoadAppointments(context.Context, time.Time) ([]db.Appointment, error) {
	out := make([]db.Appointment, len(s))
	copy(out, s)
	return out, nil
}

// PostgresScheduleSource reads the day's appointments from the appointments table
type PostgresScheduleSource struct {
	PG       *sql.DB
	Location *time.Location
}

func NewPostgresScheduleSource(pg *sql.DB, loc *time.Location) *PostgresScheduleSource {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresScheduleSource{PG: pg, Location: loc}
}

// DayBounds returns the start of day and the start of the next day in loc
func DayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	local := day.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *PostgresScheduleSource) LoadAppointments(ctx context.Context, day time.Time) ([]db.Appointment, error) {
	from, to := DayBounds(day, s.Location)

	query := `
		SELECT a.id, a.contact_name, a.assigned_worker, a.worker_slack_id, a.worker_device_token,
		       a.start_time, a.location, a.contact_phone, a.contact_email
		FROM appointments a
		WHERE a.start_time >= $1
		AND a.start_time < $2
		AND a.status <> 'cancelled'
		ORDER BY a.start_time ASC
	`

	rows, err := s.PG.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []db.Appointment
	for rows.Next() {
		var appt db.Appointment
		var slackID, deviceToken, location, phone, email sql.NullString

		if err := rows.Scan(
			&appt.ID, &appt.ContactName, &appt.AssignedWorker, &slackID, &deviceToken,
			&appt.StartTime, &location, &phone, &email,
		); err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}

		// Handle nullable fields
		appt.WorkerSlackID = slackID.String
		appt.WorkerDeviceToken = deviceToken.String
		appt.Location = location.String
		appt.ContactPhone = phone.String
		appt.ContactEmail = email.String

		appointments = append(appointments, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read appointments: %w", err)
	}

	return appointments, nil
}
