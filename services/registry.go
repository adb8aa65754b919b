package services

import (
	"errors"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phonginreallife/fieldwatch/db"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// registryEntry pairs a record with the lock that serializes its
// read-decide-write sequences
type registryEntry struct {
	mu     sync.Mutex
	record db.MonitoredAppointment
}

// AppointmentRegistry is the in-memory store of monitored appointments for one session
type AppointmentRegistry struct {
	arrivalBuffer time.Duration

	mu      sync.RWMutex
	entries map[string]*registryEntry
}

func NewAppointmentRegistry(arrivalBuffer time.Duration) *AppointmentRegistry {
	return &AppointmentRegistry{
		arrivalBuffer: arrivalBuffer,
		entries:       make(map[string]*registryEntry),
	}
}

// Load replaces the registry contents with one NOT_DUE record per appointment.
// Appointments without an ID get a generated one. Returns the number loaded.
func (r *AppointmentRegistry) Load(appointments []db.Appointment) int {
	entries := make(map[string]*registryEntry, len(appointments))
	for _, appt := range appointments {
		id := strings.TrimSpace(appt.ID)
		if id == "" {
			id = uuid.New().String()
		}
		if _, dup := entries[id]; dup {
			log.Printf("Registry: duplicate appointment %s in schedule, keeping the first", id)
			continue
		}
		entries[id] = &registryEntry{record: db.MonitoredAppointment{
			ID:                id,
			ContactName:       appt.ContactName,
			AssignedWorker:    appt.AssignedWorker,
			WorkerSlackID:     appt.WorkerSlackID,
			WorkerDeviceToken: appt.WorkerDeviceToken,
			Location:          appt.Location,
			ContactPhone:      appt.ContactPhone,
			ContactEmail:      appt.ContactEmail,
			ClientTime:        appt.StartTime,
			TargetCheckIn:     appt.StartTime.Add(-r.arrivalBuffer),
			Status:            db.StatusNotDue,
		}}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()

	return len(entries)
}

// Get returns a copy of the record with the given ID
func (r *AppointmentRegistry) Get(id string) (db.MonitoredAppointment, error) {
	entry := r.entry(id)
	if entry == nil {
		return db.MonitoredAppointment{}, ErrAppointmentNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.record, nil
}

// Update runs fn against the record while holding its lock
func (r *AppointmentRegistry) Update(id string, fn func(rec *db.MonitoredAppointment) error) error {
	entry := r.entry(id)
	if entry == nil {
		return ErrAppointmentNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(&entry.record)
}

func (r *AppointmentRegistry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.entries, id)
	return nil
}

func (r *AppointmentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns record IDs ordered by target check-in time
func (r *AppointmentRegistry) IDs() []string {
	all := r.All()
	ids := make([]string, len(all))
	for i, rec := range all {
		ids[i] = rec.ID
	}
	return ids
}

// All returns copies of every record ordered by target check-in, then ID
func (r *AppointmentRegistry) All() []db.MonitoredAppointment {
	r.mu.RLock()
	entries := make([]*registryEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	records := make([]db.MonitoredAppointment, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		records = append(records, entry.record)
		entry.mu.Unlock()
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].TargetCheckIn.Equal(records[j].TargetCheckIn) {
			return records[i].TargetCheckIn.Before(records[j].TargetCheckIn)
		}
		return records[i].ID < records[j].ID
	})
	return records
}

// Snapshot counts records by their current status
func (r *AppointmentRegistry) Snapshot() db.StatusSnapshot {
	var snap db.StatusSnapshot
	for _, rec := range r.All() {
		snap.Total++
		switch rec.Status {
		case db.StatusCheckedIn:
			snap.CheckedIn++
		case db.StatusOverdue:
			snap.Overdue++
		case db.StatusNotDue, db.StatusDueSoon:
			snap.Upcoming++
		}
	}
	return snap
}

func (r *AppointmentRegistry) entry(id string) *registryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}
