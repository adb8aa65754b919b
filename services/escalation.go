package services

import (
	"fmt"
	"log"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// EscalationThresholds are the lateness boundaries for each severity level
type EscalationThresholds struct {
	Warning  time.Duration
	Urgent   time.Duration
	Critical time.Duration
}

func DefaultEscalationThresholds() EscalationThresholds {
	return EscalationThresholds{
		Warning:  5 * time.Minute,
		Urgent:   10 * time.Minute,
		Critical: 15 * time.Minute,
	}
}

func (t EscalationThresholds) For(sev db.Severity) time.Duration {
	switch sev {
	case db.SeverityWarning:
		return t.Warning
	case db.SeverityUrgent:
		return t.Urgent
	case db.SeverityCritical:
		return t.Critical
	default:
		panic(fmt.Sprintf("no threshold for severity %s", sev))
	}
}

// Validate requires positive, strictly ascending thresholds
func (t EscalationThresholds) Validate() error {
	if t.Warning <= 0 {
		return fmt.Errorf("warning threshold must be positive, got %s", t.Warning)
	}
	if t.Urgent <= t.Warning {
		return fmt.Errorf("urgent threshold (%s) must be greater than warning (%s)", t.Urgent, t.Warning)
	}
	if t.Critical <= t.Urgent {
		return fmt.Errorf("critical threshold (%s) must be greater than urgent (%s)", t.Critical, t.Urgent)
	}
	return nil
}

// Select returns the highest level whose threshold late has reached and
// which is not yet in notified. ok is false when nothing new applies.
func (t EscalationThresholds) Select(late time.Duration, notified db.SeveritySet) (sev db.Severity, ok bool) {
	for _, level := range db.SeveritiesDescending {
		if late < t.For(level) {
			continue
		}
		if notified.Has(level) {
			continue
		}
		return level, true
	}
	return db.SeverityNone, false
}

// EscalationEngine decides which escalation, if any, an overdue record gets
type EscalationEngine struct {
	Thresholds EscalationThresholds
	Renderer   *MessageRenderer
}

func NewEscalationEngine(thresholds EscalationThresholds, renderer *MessageRenderer) *EscalationEngine {
	return &EscalationEngine{
		Thresholds: thresholds,
		Renderer:   renderer,
	}
}

// Escalate must be called with the record lock held. When a new level
// applies it marks that level and every lower one as notified, stamps the
// notification time and returns the worker and operations payloads.
// Levels are marked before delivery, so a failed send is not retried.
func (e *EscalationEngine) Escalate(rec *db.MonitoredAppointment, late time.Duration, now time.Time) []db.Notification {
	if rec.Status.IsTerminal() {
		return nil
	}

	sev, ok := e.Thresholds.Select(late, rec.Notified)
	if !ok {
		return nil
	}

	rec.Notified = rec.Notified.Through(sev)
	notifiedAt := now
	rec.LastNotifiedAt = &notifiedAt

	log.Printf("Escalation: appointment %s (%s) is %s late, escalating to %s",
		rec.ID, rec.AssignedWorker, formatMinutes(late), sev)

	return []db.Notification{
		e.Renderer.WorkerReminder(*rec, sev, late, now),
		e.Renderer.OperationsAlert(*rec, sev, late, now),
	}
}
