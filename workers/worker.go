package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/phonginreallife/fieldwatch/internal/config"
	"github.com/phonginreallife/fieldwatch/services"
)

var ErrMonitorNotRunning = errors.New("monitor is not running")

// MonitorWorker owns the monitoring session lifecycle. Each session runs a
// scheduler task that evaluates the registry on every tick, an ingestor task
// that consumes inbound messages, and a notification worker that delivers
// what both of them queue.
type MonitorWorker struct {
	Config   config.MonitorConfig
	Source   services.ScheduleSource
	Notifier services.Notifier
	Clock    services.Clock

	mu          sync.Mutex
	running     bool
	starting    bool // a Start is loading the schedule outside mu
	session     *monitorSession
	registry    *services.AppointmentRegistry
	startedAt   *time.Time
	lastTickAt  *time.Time
	lastLoadErr error
}

type monitorSession struct {
	stop    chan struct{} // closed by Stop, observed at the next wake
	done    chan struct{} // closed once every task has exited
	inbound chan inboundEvent

	ticker     services.Ticker
	evaluator  *services.StatusEvaluator
	ingestor   *services.CheckInIngestor
	dispatcher *NotificationWorker
}

type inboundEvent struct {
	ctx   context.Context
	msg   db.InboundMessage
	reply chan inboundResult
}

type inboundResult struct {
	result services.CheckInResult
	err    error
}

func NewMonitorWorker(cfg config.MonitorConfig, source services.ScheduleSource, notifier services.Notifier, clock services.Clock) *MonitorWorker {
	if clock == nil {
		clock = services.RealClock{}
	}
	return &MonitorWorker{
		Config:   cfg,
		Source:   source,
		Notifier: notifier,
		Clock:    clock,
	}
}

// Start begins a new session: it loads the day's schedule into a fresh
// registry, replacing the previous session's records, and spawns the session
// tasks. It returns false if a session is already running or starting.
func (w *MonitorWorker) Start(ctx context.Context) bool {
	w.mu.Lock()
	if w.running || w.starting {
		w.mu.Unlock()
		log.Println("Monitor: already running, ignoring start")
		return false
	}
	w.starting = true
	cfg := w.Config
	w.mu.Unlock()

	now := w.Clock.Now()
	registry := services.NewAppointmentRegistry(cfg.ArrivalBuffer)

	loadCtx, cancel := context.WithTimeout(ctx, cfg.LoadTimeout)
	appointments, loadErr := w.Source.LoadAppointments(loadCtx, now)
	cancel()
	if loadErr != nil {
		// The session still runs; arrivals will get "no appointment found"
		log.Printf("⚠️  Monitor: failed to load schedule, starting with an empty registry: %v", loadErr)
	} else {
		loaded := registry.Load(appointments)
		log.Printf("Monitor: loaded %d appointments for %s", loaded, now.In(cfg.Location()).Format("2006-01-02"))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.starting = false
	w.lastLoadErr = loadErr

	renderer := services.NewMessageRenderer(cfg.Location(), cfg.OperationsChannel)
	thresholds := services.EscalationThresholds{
		Warning:  cfg.WarningAfter,
		Urgent:   cfg.UrgentAfter,
		Critical: cfg.CriticalAfter,
	}
	dispatcher := NewNotificationWorker(w.Notifier, cfg.DispatchBuffer, cfg.NotifyTimeout)

	s := &monitorSession{
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		inbound:    make(chan inboundEvent, cfg.InboundBuffer),
		ticker:     w.Clock.NewTicker(cfg.TickInterval),
		evaluator:  services.NewStatusEvaluator(registry, services.NewEscalationEngine(thresholds, renderer), dispatcher, w.Clock, cfg.DueSoonWindow),
		ingestor:   services.NewCheckInIngestor(registry, renderer, dispatcher, w.Clock, services.CheckInSettings{MatchWindow: cfg.MatchWindow, VeryLateAfter: cfg.VeryLateAfter}),
		dispatcher: dispatcher,
	}

	var tasks sync.WaitGroup
	tasks.Add(2)
	go func() {
		defer tasks.Done()
		w.runScheduler(s)
	}()
	go func() {
		defer tasks.Done()
		w.runIngestor(s)
	}()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		s.dispatcher.StartNotificationWorker()
	}()

	go func() {
		// Producers are gone; let the sender drain what they queued
		tasks.Wait()
		s.dispatcher.Close()
		<-dispatchDone
		close(s.done)
		log.Println("Monitor: session ended")
	}()

	startedAt := now
	w.running = true
	w.session = s
	w.registry = registry
	w.startedAt = &startedAt
	w.lastTickAt = nil

	log.Printf("Monitor: started (tick every %s)", cfg.TickInterval)
	return true
}

// Stop asks the session tasks to exit at their next wake. An in-flight tick
// or delivery is not interrupted. It returns false if nothing was running.
func (w *MonitorWorker) Stop() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return false
	}
	close(w.session.stop)
	w.running = false
	log.Println("Monitor: stop requested")
	return true
}

// Wait blocks until the last session's tasks have exited or ctx is done
func (w *MonitorWorker) Wait(ctx context.Context) error {
	w.mu.Lock()
	s := w.session
	w.mu.Unlock()

	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *MonitorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Snapshot summarizes the current (or last) session
func (w *MonitorWorker) Snapshot() db.StatusSnapshot {
	w.mu.Lock()
	registry := w.registry
	snap := db.StatusSnapshot{
		Running:          w.running,
		SessionStartedAt: w.startedAt,
		LastTickAt:       w.lastTickAt,
	}
	if w.lastLoadErr != nil {
		snap.LastLoadError = w.lastLoadErr.Error()
	}
	w.mu.Unlock()

	if registry == nil {
		return snap
	}
	counts := registry.Snapshot()
	snap.Total = counts.Total
	snap.CheckedIn = counts.CheckedIn
	snap.Overdue = counts.Overdue
	snap.Upcoming = counts.Upcoming
	return snap
}

// Appointments lists the records of the current (or last) session
func (w *MonitorWorker) Appointments() []db.MonitoredAppointment {
	w.mu.Lock()
	registry := w.registry
	w.mu.Unlock()

	if registry == nil {
		return []db.MonitoredAppointment{}
	}
	return registry.All()
}

func (w *MonitorWorker) Appointment(id string) (db.MonitoredAppointment, error) {
	w.mu.Lock()
	registry := w.registry
	w.mu.Unlock()

	if registry == nil {
		return db.MonitoredAppointment{}, services.ErrAppointmentNotFound
	}
	return registry.Get(id)
}

// HandleMessage passes msg to the session's ingestor task and waits for its result
func (w *MonitorWorker) HandleMessage(ctx context.Context, msg db.InboundMessage) (services.CheckInResult, error) {
	w.mu.Lock()
	s := w.session
	running := w.running
	w.mu.Unlock()

	if !running {
		return services.CheckInResult{}, ErrMonitorNotRunning
	}

	ev := inboundEvent{ctx: ctx, msg: msg, reply: make(chan inboundResult, 1)}
	select {
	case s.inbound <- ev:
	case <-s.stop:
		return services.CheckInResult{}, ErrMonitorNotRunning
	case <-ctx.Done():
		return services.CheckInResult{}, ctx.Err()
	}

	select {
	case r := <-ev.reply:
		return r.result, r.err
	case <-s.done:
		// The ingestor may have answered just before exiting
		select {
		case r := <-ev.reply:
			return r.result, r.err
		default:
			return services.CheckInResult{}, ErrMonitorNotRunning
		}
	case <-ctx.Done():
		return services.CheckInResult{}, ctx.Err()
	}
}

// runScheduler evaluates once immediately, then on every tick until stopped
func (w *MonitorWorker) runScheduler(s *monitorSession) {
	defer s.ticker.Stop()

	w.tick(s)
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C():
			select {
			case <-s.stop:
				return
			default:
			}
			w.tick(s)
		}
	}
}

func (w *MonitorWorker) tick(s *monitorSession) {
	result := s.evaluator.Tick(context.Background())

	w.mu.Lock()
	if w.session == s {
		at := result.At
		w.lastTickAt = &at
	}
	w.mu.Unlock()

	if result.Escalations > 0 || result.Failed > 0 {
		log.Printf("Monitor: tick evaluated %d, overdue %d, escalated %d, failed %d",
			result.Evaluated, result.Overdue, result.Escalations, result.Failed)
	}
}

// runIngestor handles inbound messages one at a time until stopped
func (w *MonitorWorker) runIngestor(s *monitorSession) {
	for {
		select {
		case <-s.stop:
			return
		case ev := <-s.inbound:
			result, err := s.ingestor.Handle(ev.ctx, ev.msg)
			if err != nil {
				log.Printf("CheckIn: %v", err)
			}
			ev.reply <- inboundResult{result: result, err: err}
		}
	}
}
