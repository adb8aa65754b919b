package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phonginreallife/fieldwatch/db"
)

// MessageKind is the trigger class of an inbound chat message
type MessageKind int

const (
	MessageOther MessageKind = iota
	MessageArrival
	MessageCompletion
)

func (k MessageKind) String() string {
	switch k {
	case MessageArrival:
		return "arrival"
	case MessageCompletion:
		return "completion"
	default:
		return "other"
	}
}

var arrivalTriggers = []string{"📍", "arrived", "here", "starting", "i've arrived", "i'm here", "on site"}

var completionTriggers = []string{"🏁", "finished", "done", "all done", "i'm finished", "job complete"}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// ClassifyMessage matches text case-insensitively against the arrival
// triggers first, then the completion triggers
func ClassifyMessage(text string) MessageKind {
	normalized := apostrophes.Replace(strings.ToLower(text))
	for _, trigger := range arrivalTriggers {
		if strings.Contains(normalized, trigger) {
			return MessageArrival
		}
	}
	for _, trigger := range completionTriggers {
		if strings.Contains(normalized, trigger) {
			return MessageCompletion
		}
	}
	return MessageOther
}

// MessageRenderer turns monitor events into notification payloads
type MessageRenderer struct {
	Location          *time.Location
	OperationsChannel string
}

func NewMessageRenderer(loc *time.Location, operationsChannel string) *MessageRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return &MessageRenderer{Location: loc, OperationsChannel: operationsChannel}
}

func (m *MessageRenderer) clock(t time.Time) string {
	return t.In(m.Location).Format("15:04")
}

func workerAction(sev db.Severity) string {
	switch sev {
	case db.SeverityWarning:
		return "Check in now, or reply with your ETA if you are still on the way."
	case db.SeverityUrgent:
		return "Call the client now to confirm your arrival time, then check in."
	case db.SeverityCritical:
		return "Contact operations immediately. The client appointment is at risk."
	default:
		return "Check in when you arrive."
	}
}

func operationsAction(sev db.Severity) string {
	switch sev {
	case db.SeverityWarning:
		return "Keep an eye on it. Reach out to the worker if there is no check-in within 5 minutes."
	case db.SeverityUrgent:
		return "Call the worker now and prepare to notify the client of a delay."
	case db.SeverityCritical:
		return "Notify the client of the delay and arrange a replacement worker if needed."
	default:
		return "No action required."
	}
}

func newNotification(kind db.NotificationKind, audience db.Audience, now time.Time) db.Notification {
	return db.Notification{
		ID:        uuid.New().String(),
		Kind:      kind,
		Audience:  audience,
		CreatedAt: now,
	}
}

// WorkerReminder renders the worker-facing escalation for a missed check-in
func (m *MessageRenderer) WorkerReminder(rec db.MonitoredAppointment, sev db.Severity, late time.Duration, now time.Time) db.Notification {
	n := newNotification(db.NotificationWorkerReminder, db.AudienceWorker, now)
	n.Recipient = rec.AssignedWorker
	n.SlackTarget = rec.WorkerSlackID
	n.DeviceToken = rec.WorkerDeviceToken
	n.AppointmentID = rec.ID
	n.Severity = sev
	n.Title = fmt.Sprintf("[%s] Check-in overdue: %s", sev, rec.ContactName)
	n.Text = fmt.Sprintf(
		"Hi %s, you have not checked in for appointment %s (%s at %s).\n"+
			"Target check-in: %s | Client time: %s | Now: %s (%s late)\n"+
			"Action required: %s",
		rec.AssignedWorker, rec.ID, rec.ContactName, rec.Location,
		m.clock(rec.TargetCheckIn), m.clock(rec.ClientTime), m.clock(now), formatMinutes(late),
		workerAction(sev),
	)
	return n
}

// OperationsAlert renders the operations-facing escalation for a missed check-in
func (m *MessageRenderer) OperationsAlert(rec db.MonitoredAppointment, sev db.Severity, late time.Duration, now time.Time) db.Notification {
	n := newNotification(db.NotificationOperationsAlert, db.AudienceOperations, now)
	n.Recipient = m.OperationsChannel
	n.SlackTarget = m.OperationsChannel
	n.AppointmentID = rec.ID
	n.Severity = sev
	n.Title = fmt.Sprintf("[%s] %s has not checked in for %s", sev, rec.AssignedWorker, rec.ContactName)

	contact := rec.ContactPhone
	if contact == "" {
		contact = rec.ContactEmail
	}
	if contact == "" {
		contact = "n/a"
	}
	n.Text = fmt.Sprintf(
		"Appointment %s: %s at %s (client contact: %s)\n"+
			"Worker: %s | Target check-in: %s | Client time: %s | Now: %s\n"+
			"Minutes late: %s\n"+
			"Worker was asked to: %s\n"+
			"Recommended action: %s",
		rec.ID, rec.ContactName, rec.Location, contact,
		rec.AssignedWorker, m.clock(rec.TargetCheckIn), m.clock(rec.ClientTime), m.clock(now),
		formatMinutes(late),
		workerAction(sev),
		operationsAction(sev),
	)
	return n
}

// CheckInConfirmation renders the reply to a matched arrival message
func (m *MessageRenderer) CheckInConfirmation(rec db.MonitoredAppointment, p db.Punctuality, offset time.Duration, now time.Time) db.Notification {
	n := newNotification(db.NotificationCheckInConfirmation, db.AudienceWorker, now)
	n.Recipient = rec.AssignedWorker
	n.SlackTarget = rec.WorkerSlackID
	n.DeviceToken = rec.WorkerDeviceToken
	n.AppointmentID = rec.ID
	n.Title = fmt.Sprintf("Checked in: %s", rec.ContactName)

	var verdict string
	switch p {
	case db.PunctualityOnTime:
		if offset == 0 {
			verdict = "Right on time."
		} else {
			verdict = fmt.Sprintf("On time, %s early.", formatMinutes(-offset))
		}
	case db.PunctualityLate:
		verdict = fmt.Sprintf("Slightly late, %s after target.", formatMinutes(offset))
	case db.PunctualityVeryLate:
		verdict = fmt.Sprintf("Very late, %s after target. Please let the client know.", formatMinutes(offset))
	}

	n.Text = fmt.Sprintf(
		"Thanks %s, you are checked in for %s at %s (%s).\n%s\nTarget check-in was %s, client time %s.",
		rec.AssignedWorker, rec.ContactName, rec.Location, m.clock(now),
		verdict,
		m.clock(rec.TargetCheckIn), m.clock(rec.ClientTime),
	)
	return n
}

// NoAppointmentFound renders the fallback reply for an unmatched arrival message
func (m *MessageRenderer) NoAppointmentFound(msg db.InboundMessage, now time.Time) db.Notification {
	n := newNotification(db.NotificationNoAppointment, db.AudienceWorker, now)
	n.Recipient = msg.Sender
	n.SlackTarget = msg.SlackUserID
	n.Title = "No appointment found"
	n.Text = fmt.Sprintf(
		"Hi %s, I could not find an open appointment for you around %s. "+
			"If you are on site, please contact operations so they can check you in.",
		msg.Sender, m.clock(now),
	)
	return n
}

// CompletionAck renders the reply to a completion message. rec may be nil
// when no checked-in appointment was found for the sender.
func (m *MessageRenderer) CompletionAck(msg db.InboundMessage, rec *db.MonitoredAppointment, now time.Time) db.Notification {
	n := newNotification(db.NotificationCompletionAck, db.AudienceWorker, now)
	n.Recipient = msg.Sender
	n.SlackTarget = msg.SlackUserID
	n.Title = "Job completion noted"

	job := "your job"
	if rec != nil {
		n.AppointmentID = rec.ID
		n.DeviceToken = rec.WorkerDeviceToken
		if n.SlackTarget == "" {
			n.SlackTarget = rec.WorkerSlackID
		}
		job = fmt.Sprintf("%s at %s", rec.ContactName, rec.Location)
	}
	n.Text = fmt.Sprintf(
		"Great work %s, %s is marked finished at %s.\n"+
			"Reminder: upload the completion photos, the signed job sheet and any materials used before your next job.",
		msg.Sender, job, m.clock(now),
	)
	return n
}

// formatMinutes renders a duration as whole or fractional minutes
func formatMinutes(d time.Duration) string {
	minutes := math.Abs(d.Minutes())
	if minutes == math.Trunc(minutes) {
		if minutes == 1 {
			return "1 min"
		}
		return fmt.Sprintf("%d min", int(minutes))
	}
	return fmt.Sprintf("%.1f min", minutes)
}
