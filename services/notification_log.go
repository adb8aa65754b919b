package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// NotificationLogService persists delivery attempts to notification_logs for auditing
type NotificationLogService struct {
	PG *sql.DB
}

func NewNotificationLogService(pg *sql.DB) *NotificationLogService {
	return &NotificationLogService{PG: pg}
}

// Record writes one row per delivery attempt; sendErr decides the status
func (s *NotificationLogService) Record(ctx context.Context, n db.Notification, sendErr error) error {
	query := `
		INSERT INTO notification_logs (id, appointment_id, notification_type, audience, severity,
		                               recipient, message, status, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	status := "sent"
	errorMsg := ""
	var sentAt interface{} = time.Now().UTC()
	if sendErr != nil {
		status = "failed"
		errorMsg = sendErr.Error()
		sentAt = nil
	}

	var appointmentID interface{}
	if n.AppointmentID != "" {
		appointmentID = n.AppointmentID
	}

	_, err := s.PG.ExecContext(ctx, query,
		n.ID,
		appointmentID,
		string(n.Kind),
		string(n.Audience),
		n.Severity.String(),
		n.Recipient,
		n.Text,
		status,
		errorMsg,
		sentAt,
	)
	return err
}

// CountByStatus returns how many log rows exist per status for one appointment
func (s *NotificationLogService) CountByStatus(ctx context.Context, appointmentID string) (map[string]int, error) {
	rows, err := s.PG.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM notification_logs
		WHERE appointment_id = $1
		GROUP BY status
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}
