package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func arrival(sender string, when time.Time) db.InboundMessage {
	return db.InboundMessage{Sender: sender, Text: "📍 Arrived", Timestamp: when, SlackUserID: "U-" + sender}
}

func TestCheckInIngestor_EarlyArrivalStopsEscalation(t *testing.T) {
	rig := newTestRig(at(9, 30), sampleAppointment("a1", "Sam", at(10, 0)))
	rig.tickAt(at(9, 35))

	result, err := rig.ingestor.Handle(context.Background(), arrival("Sam", at(9, 40)))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCheckedIn, result.Outcome)
	assert.Equal(t, "arrival", result.Kind)
	assert.Equal(t, "a1", result.AppointmentID)
	require.NotNil(t, result.Punctuality)
	assert.Equal(t, db.PunctualityOnTime, *result.Punctuality)
	assert.Equal(t, -5.0, result.OffsetMinutes)

	require.NotNil(t, result.Reply)
	assert.Equal(t, db.NotificationCheckInConfirmation, result.Reply.Kind)
	assert.Equal(t, "Ua1", result.Reply.SlackTarget)
	assert.Contains(t, result.Reply.Text, "5 min early")

	rec, _ := rig.registry.Get("a1")
	assert.Equal(t, db.StatusCheckedIn, rec.Status)
	require.NotNil(t, rec.CheckedInAt)
	assert.Equal(t, at(9, 40), *rec.CheckedInAt)

	rig.dispatcher.reset()
	rig.tickAt(at(9, 50))
	rig.tickAt(at(10, 1))
	assert.Empty(t, rig.dispatcher.all())

	rec, _ = rig.registry.Get("a1")
	assert.Equal(t, db.StatusCheckedIn, rec.Status)
}

func TestCheckInIngestor_NoAppointmentFound(t *testing.T) {
	rig := newTestRig(at(9, 30), sampleAppointment("a1", "Sam", at(10, 0)))
	before := rig.registry.All()

	result, err := rig.ingestor.Handle(context.Background(), arrival("Jordan", at(9, 40)))
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoAppointment, result.Outcome)
	assert.Empty(t, result.AppointmentID)
	assert.Nil(t, result.Punctuality)

	sent := rig.dispatcher.all()
	require.Len(t, sent, 1)
	assert.Equal(t, db.NotificationNoAppointment, sent[0].Kind)
	assert.Equal(t, "Jordan", sent[0].Recipient)
	assert.Equal(t, "U-Jordan", sent[0].SlackTarget)

	assert.Equal(t, before, rig.registry.All())
}

func TestCheckInIngestor_Punctuality(t *testing.T) {
	tests := []struct {
		name     string
		arrived  time.Time
		expected db.Punctuality
		text     string
	}{
		{"exactly at target", at(9, 45), db.PunctualityOnTime, "Right on time"},
		{"three minutes late", at(9, 48), db.PunctualityLate, "Slightly late, 3 min after target"},
		{"five minutes late", at(9, 50), db.PunctualityLate, "Slightly late"},
		{"seven minutes late", at(9, 52), db.PunctualityVeryLate, "Very late, 7 min after target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rig := newTestRig(at(9, 30), sampleAppointment("a1", "Sam", at(10, 0)))

			result, err := rig.ingestor.Handle(context.Background(), arrival("Sam", tt.arrived))
			require.NoError(t, err)
			require.NotNil(t, result.Punctuality)
			assert.Equal(t, tt.expected, *result.Punctuality)
			assert.Contains(t, result.Reply.Text, tt.text)
		})
	}
}

func TestCheckInIngestor_MatchesClosestAppointment(t *testing.T) {
	appointments := []db.Appointment{
		sampleAppointment("first", "Sam", at(10, 0)),  // target 09:45
		sampleAppointment("second", "Sam", at(10, 30)), // target 10:15
		sampleAppointment("other", "Alex", at(10, 5)),
	}

	t.Run("closest target wins", func(t *testing.T) {
		rig := newTestRig(at(9, 0), appointments...)
		result, err := rig.ingestor.Handle(context.Background(), arrival("Sam", at(10, 5)))
		require.NoError(t, err)
		assert.Equal(t, "second", result.AppointmentID)
	})

	t.Run("equal distance prefers earlier target", func(t *testing.T) {
		rig := newTestRig(at(9, 0), appointments...)
		result, err := rig.ingestor.Handle(context.Background(), arrival("Sam", at(10, 0)))
		require.NoError(t, err)
		assert.Equal(t, "first", result.AppointmentID)
	})

	t.Run("explicit reference wins", func(t *testing.T) {
		rig := newTestRig(at(9, 0), appointments...)
		msg := arrival("Sam", at(10, 5))
		msg.AppointmentID = "first"
		result, err := rig.ingestor.Handle(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, "first", result.AppointmentID)
	})

	t.Run("explicit reference to another worker is ignored", func(t *testing.T) {
		rig := newTestRig(at(9, 0), appointments...)
		msg := arrival("Sam", at(10, 5))
		msg.AppointmentID = "other"
		result, err := rig.ingestor.Handle(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, "second", result.AppointmentID)

		rec, _ := rig.registry.Get("other")
		assert.NotEqual(t, db.StatusCheckedIn, rec.Status)
	})

	t.Run("second arrival takes the remaining appointment", func(t *testing.T) {
		rig := newTestRig(at(9, 0), appointments...)
		_, err := rig.ingestor.Handle(context.Background(), arrival("Sam", at(10, 0)))
		require.NoError(t, err)
		result, err := rig.ingestor.Handle(context.Background(), arrival("Sam", at(10, 10)))
		require.NoError(t, err)
		assert.Equal(t, "second", result.AppointmentID)
	})
}

func TestCheckInIngestor_MatchWindowAndWorkerName(t *testing.T) {
	rig := newTestRig(at(9, 0), sampleAppointment("a1", "Sam Carter", at(10, 0)))

	// 75 minutes after target is outside the 60 minute window
	result, err := rig.ingestor.Handle(context.Background(), arrival("Sam Carter", at(11, 0)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAppointment, result.Outcome)

	result, err = rig.ingestor.Handle(context.Background(), arrival("  sam carter ", at(9, 44)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCheckedIn, result.Outcome)

	// Already checked in
	result, err = rig.ingestor.Handle(context.Background(), arrival("Sam Carter", at(9, 46)))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAppointment, result.Outcome)
}

func TestCheckInIngestor_UsesClockWhenTimestampMissing(t *testing.T) {
	rig := newTestRig(at(9, 47), sampleAppointment("a1", "Sam", at(10, 0)))

	result, err := rig.ingestor.Handle(context.Background(), db.InboundMessage{Sender: "Sam", Text: "I'm here"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCheckedIn, result.Outcome)

	rec, _ := rig.registry.Get("a1")
	assert.Equal(t, at(9, 47), *rec.CheckedInAt)
}

func TestCheckInIngestor_Completion(t *testing.T) {
	rig := newTestRig(at(9, 0), sampleAppointment("a1", "Sam", at(10, 0)))

	// Completion before any check-in is acknowledged but touches nothing
	result, err := rig.ingestor.Handle(context.Background(), db.InboundMessage{Sender: "Sam", Text: "Job complete 🏁", Timestamp: at(9, 30)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompletionAck, result.Outcome)
	assert.Empty(t, result.AppointmentID)
	rec, _ := rig.registry.Get("a1")
	assert.Nil(t, rec.CompletedAt)

	_, err = rig.ingestor.Handle(context.Background(), arrival("Sam", at(9, 44)))
	require.NoError(t, err)

	result, err = rig.ingestor.Handle(context.Background(), db.InboundMessage{Sender: "Sam", Text: "All finished", Timestamp: at(11, 0)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompletionAck, result.Outcome)
	assert.Equal(t, "completion", result.Kind)
	assert.Equal(t, "a1", result.AppointmentID)
	assert.Contains(t, result.Reply.Text, "upload the completion photos")

	rec, _ = rig.registry.Get("a1")
	assert.Equal(t, db.StatusCheckedIn, rec.Status)
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, at(11, 0), *rec.CompletedAt)
}

func TestCheckInIngestor_IgnoresOtherMessages(t *testing.T) {
	rig := newTestRig(at(9, 0), sampleAppointment("a1", "Sam", at(10, 0)))

	result, err := rig.ingestor.Handle(context.Background(), db.InboundMessage{Sender: "Sam", Text: "Stuck in traffic", Timestamp: at(9, 40)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, result.Outcome)
	assert.Nil(t, result.Reply)
	assert.Empty(t, rig.dispatcher.all())

	rec, _ := rig.registry.Get("a1")
	assert.Equal(t, db.StatusNotDue, rec.Status)
}

func TestCheckInIngestor_ReplyQueueFailure(t *testing.T) {
	rig := newTestRig(at(9, 0), sampleAppointment("a1", "Sam", at(10, 0)))
	rig.dispatcher.err = errors.New("queue full")

	result, err := rig.ingestor.Handle(context.Background(), arrival("Sam", at(9, 44)))
	assert.Error(t, err)
	assert.Equal(t, OutcomeCheckedIn, result.Outcome)

	rec, _ := rig.registry.Get("a1")
	assert.Equal(t, db.StatusCheckedIn, rec.Status)
}

func TestClassifyPunctuality(t *testing.T) {
	assert.Equal(t, db.PunctualityOnTime, ClassifyPunctuality(-10*time.Minute, 5*time.Minute))
	assert.Equal(t, db.PunctualityOnTime, ClassifyPunctuality(0, 5*time.Minute))
	assert.Equal(t, db.PunctualityLate, ClassifyPunctuality(time.Second, 5*time.Minute))
	assert.Equal(t, db.PunctualityLate, ClassifyPunctuality(5*time.Minute, 5*time.Minute))
	assert.Equal(t, db.PunctualityVeryLate, ClassifyPunctuality(5*time.Minute+time.Second, 5*time.Minute))
}
