package services

import (
	"context"
	"sync"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// at returns a time on the fixed test day
func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 10, hour, minute, 0, 0, time.UTC)
}

// recordingDispatcher captures queued notifications instead of delivering them
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []db.Notification
	err  error
}

func (r *recordingDispatcher) Enqueue(_ context.Context, n db.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingDispatcher) all() []db.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]db.Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *recordingDispatcher) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

// severities returns the severity of every worker reminder, in order
func (r *recordingDispatcher) severities() []db.Severity {
	var out []db.Severity
	for _, n := range r.all() {
		if n.Kind == db.NotificationWorkerReminder {
			out = append(out, n.Severity)
		}
	}
	return out
}

func sampleAppointment(id, worker string, start time.Time) db.Appointment {
	return db.Appointment{
		ID:             id,
		ContactName:    "Client " + id,
		AssignedWorker: worker,
		WorkerSlackID:  "U" + id,
		StartTime:      start,
		Location:       "12 Harbour Street",
		ContactPhone:   "+44 20 7946 0000",
	}
}

type testRig struct {
	clock      *FakeClock
	registry   *AppointmentRegistry
	dispatcher *recordingDispatcher
	evaluator  *StatusEvaluator
	ingestor   *CheckInIngestor
}

func newTestRig(now time.Time, appointments ...db.Appointment) *testRig {
	clock := NewFakeClock(now)
	registry := NewAppointmentRegistry(15 * time.Minute)
	registry.Load(appointments)
	dispatcher := &recordingDispatcher{}
	renderer := NewMessageRenderer(time.UTC, "#field-ops")
	engine := NewEscalationEngine(DefaultEscalationThresholds(), renderer)

	return &testRig{
		clock:      clock,
		registry:   registry,
		dispatcher: dispatcher,
		evaluator:  NewStatusEvaluator(registry, engine, dispatcher, clock, 5*time.Minute),
		ingestor:   NewCheckInIngestor(registry, renderer, dispatcher, clock, DefaultCheckInSettings()),
	}
}

func (r *testRig) tickAt(now time.Time) TickResult {
	r.clock.Set(now)
	return r.evaluator.Tick(context.Background())
}
