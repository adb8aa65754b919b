package services

import (
	"errors"
	"testing"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentRegistry_Load(t *testing.T) {
	registry := NewAppointmentRegistry(15 * time.Minute)
	loaded := registry.Load([]db.Appointment{
		sampleAppointment("a1", "Sam", at(10, 0)),
		sampleAppointment("a2", "Alex", at(9, 0)),
	})
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 2, registry.Len())

	rec, err := registry.Get("a1")
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), rec.ClientTime)
	assert.Equal(t, at(9, 45), rec.TargetCheckIn)
	assert.Equal(t, db.StatusNotDue, rec.Status)
	assert.Nil(t, rec.CheckedInAt)
	assert.Empty(t, rec.Notified.Levels())

	// Ordered by target check-in
	assert.Equal(t, []string{"a2", "a1"}, registry.IDs())
}

func TestAppointmentRegistry_LoadReplacesPreviousSession(t *testing.T) {
	registry := NewAppointmentRegistry(15 * time.Minute)
	registry.Load([]db.Appointment{sampleAppointment("old", "Sam", at(10, 0))})
	registry.Load([]db.Appointment{sampleAppointment("new", "Sam", at(11, 0))})

	_, err := registry.Get("old")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	_, err = registry.Get("new")
	assert.NoError(t, err)
}

func TestAppointmentRegistry_LoadGeneratesMissingIDsAndSkipsDuplicates(t *testing.T) {
	registry := NewAppointmentRegistry(15 * time.Minute)
	noID := sampleAppointment("", "Sam", at(10, 0))
	first := sampleAppointment("dup", "Alex", at(11, 0))
	second := sampleAppointment("dup", "Jo", at(12, 0))

	loaded := registry.Load([]db.Appointment{noID, first, second})
	assert.Equal(t, 2, loaded)

	rec, err := registry.Get("dup")
	require.NoError(t, err)
	assert.Equal(t, "Alex", rec.AssignedWorker)

	for _, r := range registry.All() {
		assert.NotEmpty(t, r.ID)
	}
}

func TestAppointmentRegistry_UpdateAndRemove(t *testing.T) {
	registry := NewAppointmentRegistry(15 * time.Minute)
	registry.Load([]db.Appointment{sampleAppointment("a1", "Sam", at(10, 0))})

	err := registry.Update("a1", func(rec *db.MonitoredAppointment) error {
		rec.Status = db.StatusOverdue
		return nil
	})
	require.NoError(t, err)

	rec, _ := registry.Get("a1")
	assert.Equal(t, db.StatusOverdue, rec.Status)

	// Get returns a copy
	rec.Status = db.StatusNotDue
	again, _ := registry.Get("a1")
	assert.Equal(t, db.StatusOverdue, again.Status)

	boom := errors.New("boom")
	assert.ErrorIs(t, registry.Update("a1", func(*db.MonitoredAppointment) error { return boom }), boom)
	assert.ErrorIs(t, registry.Update("missing", func(*db.MonitoredAppointment) error { return nil }), ErrAppointmentNotFound)

	require.NoError(t, registry.Remove("a1"))
	assert.ErrorIs(t, registry.Remove("a1"), ErrAppointmentNotFound)
	assert.Equal(t, 0, registry.Len())
}

func TestAppointmentRegistry_Snapshot(t *testing.T) {
	var appointments []db.Appointment
	for i := 0; i < 10; i++ {
		appointments = append(appointments, sampleAppointment(string(rune('a'+i)), "Sam", at(10, i)))
	}
	registry := NewAppointmentRegistry(15 * time.Minute)
	registry.Load(appointments)

	statuses := map[string]db.Status{
		"a": db.StatusCheckedIn, "b": db.StatusCheckedIn, "c": db.StatusCheckedIn,
		"d": db.StatusOverdue, "e": db.StatusOverdue,
		"f": db.StatusDueSoon, "g": db.StatusDueSoon,
	}
	for id, status := range statuses {
		status := status
		require.NoError(t, registry.Update(id, func(rec *db.MonitoredAppointment) error {
			rec.Status = status
			return nil
		}))
	}

	snap := registry.Snapshot()
	assert.Equal(t, 10, snap.Total)
	assert.Equal(t, 3, snap.CheckedIn)
	assert.Equal(t, 2, snap.Overdue)
	assert.Equal(t, 5, snap.Upcoming)
}
