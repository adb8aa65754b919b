package services

import (
	"testing"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationThresholds_Select(t *testing.T) {
	thresholds := DefaultEscalationThresholds()
	warned := db.SeveritySet(0).With(db.SeverityWarning)

	tests := []struct {
		name     string
		late     time.Duration
		notified db.SeveritySet
		expected db.Severity
		ok       bool
	}{
		{"not late", 0, 0, db.SeverityNone, false},
		{"just under warning", 5*time.Minute - time.Second, 0, db.SeverityNone, false},
		{"exactly warning", 5 * time.Minute, 0, db.SeverityWarning, true},
		{"exactly urgent", 10 * time.Minute, 0, db.SeverityUrgent, true},
		{"exactly critical", 15 * time.Minute, 0, db.SeverityCritical, true},
		{"past critical", 40 * time.Minute, 0, db.SeverityCritical, true},
		{"warning already sent", 7 * time.Minute, warned, db.SeverityNone, false},
		{"urgent after warning", 12 * time.Minute, warned, db.SeverityUrgent, true},
		{"all sent", 30 * time.Minute, db.SeveritySet(0).Through(db.SeverityCritical), db.SeverityNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sev, ok := thresholds.Select(tt.late, tt.notified)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, sev)
		})
	}
}

func TestEscalationThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultEscalationThresholds().Validate())

	assert.Error(t, EscalationThresholds{Warning: 0, Urgent: time.Minute, Critical: 2 * time.Minute}.Validate())
	assert.Error(t, EscalationThresholds{Warning: 5 * time.Minute, Urgent: 5 * time.Minute, Critical: 15 * time.Minute}.Validate())
	assert.Error(t, EscalationThresholds{Warning: 5 * time.Minute, Urgent: 10 * time.Minute, Critical: 9 * time.Minute}.Validate())
}

func TestEscalationEngine_Escalate(t *testing.T) {
	engine := NewEscalationEngine(DefaultEscalationThresholds(), NewMessageRenderer(time.UTC, "#field-ops"))
	rec := &db.MonitoredAppointment{
		ID:             "a1",
		ContactName:    "Riverside Dental",
		AssignedWorker: "Sam",
		WorkerSlackID:  "U123",
		Location:       "4 Mill Lane",
		ClientTime:     at(10, 0),
		TargetCheckIn:  at(9, 45),
		Status:         db.StatusOverdue,
	}

	notifications := engine.Escalate(rec, 11*time.Minute, at(9, 56))
	require.Len(t, notifications, 2)

	worker, ops := notifications[0], notifications[1]
	assert.Equal(t, db.NotificationWorkerReminder, worker.Kind)
	assert.Equal(t, db.AudienceWorker, worker.Audience)
	assert.Equal(t, "U123", worker.SlackTarget)
	assert.Equal(t, db.SeverityUrgent, worker.Severity)
	assert.Equal(t, "[URGENT] Check-in overdue: Riverside Dental", worker.Title)
	assert.Contains(t, worker.Text, "Target check-in: 09:45")
	assert.Contains(t, worker.Text, "11 min late")

	assert.Equal(t, db.NotificationOperationsAlert, ops.Kind)
	assert.Equal(t, db.AudienceOperations, ops.Audience)
	assert.Equal(t, "#field-ops", ops.Recipient)
	assert.Equal(t, "a1", ops.AppointmentID)
	assert.Contains(t, ops.Text, "Minutes late: 11 min")
	assert.Contains(t, ops.Text, "Recommended action:")

	assert.Equal(t, []db.Severity{db.SeverityWarning, db.SeverityUrgent}, rec.Notified.Levels())
	require.NotNil(t, rec.LastNotifiedAt)
	assert.Equal(t, at(9, 56), *rec.LastNotifiedAt)

	// Same level again is a no-op
	assert.Nil(t, engine.Escalate(rec, 12*time.Minute, at(9, 57)))
	assert.Equal(t, at(9, 56), *rec.LastNotifiedAt)
}

func TestEscalationEngine_IgnoresCheckedIn(t *testing.T) {
	engine := NewEscalationEngine(DefaultEscalationThresholds(), NewMessageRenderer(time.UTC, "#field-ops"))
	rec := &db.MonitoredAppointment{ID: "a1", Status: db.StatusCheckedIn}

	assert.Nil(t, engine.Escalate(rec, time.Hour, at(11, 0)))
	assert.Empty(t, rec.Notified.Levels())
	assert.Nil(t, rec.LastNotifiedAt)
}
