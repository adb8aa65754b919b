package db

import (
	"fmt"
	"time"
)

// ===========================
// APPOINTMENT MODELS
// ===========================

// Appointment is one scheduled job as supplied by the schedule source
type Appointment struct {
	ID                string    `json:"id"`
	ContactName       string    `json:"contact_name"`
	AssignedWorker    string    `json:"assigned_worker"`
	WorkerSlackID     string    `json:"worker_slack_id,omitempty"`
	WorkerDeviceToken string    `json:"worker_device_token,omitempty"`
	StartTime         time.Time `json:"start_time"` // client appointment time
	Location          string    `json:"location"`
	ContactPhone      string    `json:"contact_phone,omitempty"`
	ContactEmail      string    `json:"contact_email,omitempty"`
}

// MonitoredAppointment is the registry record for an appointment under observation.
// TargetCheckIn is fixed at load time.
type MonitoredAppointment struct {
	ID                string `json:"id"`
	ContactName       string `json:"contact_name"`
	AssignedWorker    string `json:"assigned_worker"`
	WorkerSlackID     string `json:"worker_slack_id,omitempty"`
	WorkerDeviceToken string `json:"-"`
	Location          string `json:"location"`
	ContactPhone      string `json:"contact_phone,omitempty"`
	ContactEmail      string `json:"contact_email,omitempty"`

	ClientTime    time.Time `json:"client_time"`
	TargetCheckIn time.Time `json:"target_checkin"`

	Status         Status      `json:"status"`
	MinutesLate    float64     `json:"minutes_late,omitempty"`
	CheckedInAt    *time.Time  `json:"checked_in_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	Notified       SeveritySet `json:"notified"`
	LastNotifiedAt *time.Time  `json:"last_notified_at,omitempty"`
}

// ===========================
// STATUS
// ===========================

type Status int

const (
	StatusNotDue Status = iota
	StatusDueSoon
	StatusOverdue
	StatusCheckedIn
)

func (s Status) String() string {
	switch s {
	case StatusNotDue:
		return "NOT_DUE"
	case StatusDueSoon:
		return "DUE_SOON"
	case StatusOverdue:
		return "OVERDUE"
	case StatusCheckedIn:
		return "CHECKED_IN"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether the status is never recomputed again
func (s Status) IsTerminal() bool {
	return s == StatusCheckedIn
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NOT_DUE":
		*s = StatusNotDue
	case "DUE_SOON":
		*s = StatusDueSoon
	case "OVERDUE":
		*s = StatusOverdue
	case "CHECKED_IN":
		*s = StatusCheckedIn
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
	return nil
}

// ===========================
// SEVERITY
// ===========================

type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityUrgent
	SeverityCritical
)

// SeveritiesDescending lists escalation levels from highest to lowest
var SeveritiesDescending = []Severity{SeverityCritical, SeverityUrgent, SeverityWarning}

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "NONE"
	case SeverityWarning:
		return "WARNING"
	case SeverityUrgent:
		return "URGENT"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SeveritySet is the set of escalation levels already notified for a record.
// It only ever grows.
type SeveritySet uint8

func (s SeveritySet) Has(sev Severity) bool {
	if sev == SeverityNone {
		return false
	}
	return s&(1<<uint(sev)) != 0
}

// With returns the set plus sev
func (s SeveritySet) With(sev Severity) SeveritySet {
	if sev == SeverityNone {
		return s
	}
	return s | 1<<uint(sev)
}

// Through returns the set plus sev and every lower level
func (s SeveritySet) Through(sev Severity) SeveritySet {
	for _, level := range SeveritiesDescending {
		if level <= sev {
			s = s.With(level)
		}
	}
	return s
}

// Levels returns the members ordered from lowest to highest
func (s SeveritySet) Levels() []Severity {
	levels := []Severity{}
	for i := len(SeveritiesDescending) - 1; i >= 0; i-- {
		if s.Has(SeveritiesDescending[i]) {
			levels = append(levels, SeveritiesDescending[i])
		}
	}
	return levels
}

func (s SeveritySet) MarshalJSON() ([]byte, error) {
	out := []byte{'['}
	for i, level := range s.Levels() {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, '"')
		out = append(out, level.String()...)
		out = append(out, '"')
	}
	return append(out, ']'), nil
}

// ===========================
// PUNCTUALITY
// ===========================

type Punctuality int

const (
	PunctualityOnTime Punctuality = iota
	PunctualityLate
	PunctualityVeryLate
)

func (p Punctuality) String() string {
	switch p {
	case PunctualityOnTime:
		return "on_time"
	case PunctualityLate:
		return "late"
	case PunctualityVeryLate:
		return "very_late"
	default:
		return fmt.Sprintf("Punctuality(%d)", int(p))
	}
}

func (p Punctuality) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// ===========================
// INBOUND MESSAGES
// ===========================

// InboundMessage is a chat message from a worker
type InboundMessage struct {
	Sender        string    `json:"sender" binding:"required"`
	Text          string    `json:"text" binding:"required"`
	Timestamp     time.Time `json:"timestamp"`
	AppointmentID string    `json:"appointment_id,omitempty"` // optional explicit reference
	SlackUserID   string    `json:"slack_user_id,omitempty"`
}

// ===========================
// NOTIFICATIONS
// ===========================

type NotificationKind string

const (
	NotificationWorkerReminder      NotificationKind = "worker_reminder"
	NotificationOperationsAlert     NotificationKind = "operations_alert"
	NotificationCheckInConfirmation NotificationKind = "checkin_confirmation"
	NotificationNoAppointment       NotificationKind = "no_appointment"
	NotificationCompletionAck       NotificationKind = "completion_ack"
)

type Audience string

const (
	AudienceWorker     Audience = "worker"
	AudienceOperations Audience = "operations"
)

// Notification is a rendered message handed to the notification sink
type Notification struct {
	ID            string           `json:"id"`
	Kind          NotificationKind `json:"kind"`
	Audience      Audience         `json:"audience"`
	Recipient     string           `json:"recipient"`              // worker name or operations channel
	SlackTarget   string           `json:"slack_target,omitempty"` // channel or Slack user ID
	DeviceToken   string           `json:"-"`
	AppointmentID string           `json:"appointment_id,omitempty"`
	Severity      Severity         `json:"severity"`
	Title         string           `json:"title"`
	Text          string           `json:"text"`
	CreatedAt     time.Time        `json:"created_at"`
}

// StatusSnapshot is the read-only health summary of a monitoring session
type StatusSnapshot struct {
	Total            int        `json:"total"`
	CheckedIn        int        `json:"checked_in"`
	Overdue          int        `json:"overdue"`
	Upcoming         int        `json:"upcoming"`
	Running          bool       `json:"running"`
	SessionStartedAt *time.Time `json:"session_started_at,omitempty"`
	LastTickAt       *time.Time `json:"last_tick_at,omitempty"`
	LastLoadError    string     `json:"last_load_error,omitempty"`
}
