package services

import (
	"context"
	"log"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// ClassifyStatus derives a non-terminal status from the time left until the
// target check-in. late is zero unless the status is OVERDUE.
func ClassifyStatus(target, now time.Time, dueSoonWindow time.Duration) (status db.Status, late time.Duration) {
	delta := target.Sub(now)
	switch {
	case delta >= dueSoonWindow:
		return db.StatusNotDue, 0
	case delta > 0:
		return db.StatusDueSoon, 0
	default:
		return db.StatusOverdue, -delta
	}
}

// TickResult summarizes one evaluator pass
type TickResult struct {
	At          time.Time
	Evaluated   int
	Overdue     int
	Escalations int
	Failed      int
}

// StatusEvaluator reclassifies every open record and escalates overdue ones
type StatusEvaluator struct {
	Registry      *AppointmentRegistry
	Engine        *EscalationEngine
	Dispatcher    Dispatcher
	Clock         Clock
	DueSoonWindow time.Duration
}

func NewStatusEvaluator(registry *AppointmentRegistry, engine *EscalationEngine, dispatcher Dispatcher, clock Clock, dueSoonWindow time.Duration) *StatusEvaluator {
	return &StatusEvaluator{
		Registry:      registry,
		Engine:        engine,
		Dispatcher:    dispatcher,
		Clock:         clock,
		DueSoonWindow: dueSoonWindow,
	}
}

// Tick evaluates all records against the current time. A failure on one
// record is logged and never stops the rest of the pass.
func (e *StatusEvaluator) Tick(ctx context.Context) TickResult {
	now := e.Clock.Now()
	result := TickResult{At: now}

	for _, id := range e.Registry.IDs() {
		var pending []db.Notification

		err := e.Registry.Update(id, func(rec *db.MonitoredAppointment) error {
			if rec.Status.IsTerminal() {
				return nil
			}
			result.Evaluated++

			status, late := ClassifyStatus(rec.TargetCheckIn, now, e.DueSoonWindow)
			rec.Status = status
			if status != db.StatusOverdue {
				rec.MinutesLate = 0
				return nil
			}

			result.Overdue++
			rec.MinutesLate = late.Minutes()
			pending = e.Engine.Escalate(rec, late, now)
			return nil
		})
		if err != nil {
			// Removed between listing and update
			log.Printf("Monitor: skipping appointment %s: %v", id, err)
			continue
		}

		if len(pending) > 0 {
			result.Escalations++
		}
		for _, n := range pending {
			if err := e.Dispatcher.Enqueue(ctx, n); err != nil {
				result.Failed++
				log.Printf("Monitor: failed to queue %s for appointment %s: %v", n.Kind, id, err)
			}
		}
	}

	return result
}
