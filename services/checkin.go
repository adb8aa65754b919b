package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/phonginreallife/fieldwatch/db"
)

// CheckInOutcome describes what the ingestor did with a message
type CheckInOutcome string

const (
	OutcomeCheckedIn     CheckInOutcome = "checked_in"
	OutcomeNoAppointment CheckInOutcome = "no_appointment"
	OutcomeCompletionAck CheckInOutcome = "completion_ack"
	OutcomeIgnored       CheckInOutcome = "ignored"
)

// CheckInResult is returned for every handled message
type CheckInResult struct {
	Outcome       CheckInOutcome   `json:"outcome"`
	Kind          string           `json:"kind"`
	AppointmentID string           `json:"appointment_id,omitempty"`
	Punctuality   *db.Punctuality  `json:"punctuality,omitempty"`
	OffsetMinutes float64          `json:"offset_minutes,omitempty"`
	Reply         *db.Notification `json:"reply,omitempty"`
}

// CheckInSettings holds the ingestor's windows
type CheckInSettings struct {
	MatchWindow   time.Duration // max |now - target| for an arrival to match
	VeryLateAfter time.Duration // offsets beyond this are very late
}

func DefaultCheckInSettings() CheckInSettings {
	return CheckInSettings{
		MatchWindow:   60 * time.Minute,
		VeryLateAfter: 5 * time.Minute,
	}
}

var errAlreadyCheckedIn = errors.New("appointment already checked in")

// CheckInIngestor matches worker messages to pending appointments
type CheckInIngestor struct {
	Registry   *AppointmentRegistry
	Renderer   *MessageRenderer
	Dispatcher Dispatcher
	Clock      Clock
	Settings   CheckInSettings
}

func NewCheckInIngestor(registry *AppointmentRegistry, renderer *MessageRenderer, dispatcher Dispatcher, clock Clock, settings CheckInSettings) *CheckInIngestor {
	return &CheckInIngestor{
		Registry:   registry,
		Renderer:   renderer,
		Dispatcher: dispatcher,
		Clock:      clock,
		Settings:   settings,
	}
}

// ClassifyPunctuality labels a check-in offset (now - target)
func ClassifyPunctuality(offset, veryLateAfter time.Duration) db.Punctuality {
	switch {
	case offset <= 0:
		return db.PunctualityOnTime
	case offset <= veryLateAfter:
		return db.PunctualityLate
	default:
		return db.PunctualityVeryLate
	}
}

// Handle processes one inbound message. The returned error only reports a
// reply that could not be queued; the registry change has already happened.
func (i *CheckInIngestor) Handle(ctx context.Context, msg db.InboundMessage) (CheckInResult, error) {
	now := msg.Timestamp
	if now.IsZero() {
		now = i.Clock.Now()
	}

	kind := ClassifyMessage(msg.Text)
	result := CheckInResult{Kind: kind.String()}

	switch kind {
	case MessageArrival:
		i.handleArrival(msg, now, &result)
	case MessageCompletion:
		i.handleCompletion(msg, now, &result)
	default:
		result.Outcome = OutcomeIgnored
		return result, nil
	}

	if err := i.Dispatcher.Enqueue(ctx, *result.Reply); err != nil {
		return result, fmt.Errorf("failed to queue %s reply for %s: %w", result.Reply.Kind, msg.Sender, err)
	}
	return result, nil
}

func (i *CheckInIngestor) handleArrival(msg db.InboundMessage, now time.Time, result *CheckInResult) {
	for _, candidate := range i.arrivalCandidates(msg, now) {
		var checkedIn db.MonitoredAppointment
		err := i.Registry.Update(candidate.ID, func(rec *db.MonitoredAppointment) error {
			if rec.Status.IsTerminal() {
				return errAlreadyCheckedIn
			}
			at := now
			rec.Status = db.StatusCheckedIn
			rec.CheckedInAt = &at
			rec.MinutesLate = 0
			checkedIn = *rec
			return nil
		})
		if err != nil {
			// Lost a race with another arrival or a removal; try the next candidate
			continue
		}

		offset := now.Sub(checkedIn.TargetCheckIn)
		punctuality := ClassifyPunctuality(offset, i.Settings.VeryLateAfter)
		reply := i.Renderer.CheckInConfirmation(checkedIn, punctuality, offset, now)
		if reply.SlackTarget == "" {
			reply.SlackTarget = msg.SlackUserID
		}

		result.Outcome = OutcomeCheckedIn
		result.AppointmentID = checkedIn.ID
		result.Punctuality = &punctuality
		result.OffsetMinutes = offset.Minutes()
		result.Reply = &reply

		log.Printf("CheckIn: %s checked in for appointment %s (%s, offset %s)",
			checkedIn.AssignedWorker, checkedIn.ID, punctuality, formatSignedMinutes(offset))
		return
	}

	reply := i.Renderer.NoAppointmentFound(msg, now)
	result.Outcome = OutcomeNoAppointment
	result.Reply = &reply
	log.Printf("CheckIn: no open appointment for %s within %s", msg.Sender, i.Settings.MatchWindow)
}

// arrivalCandidates lists the sender's open records inside the match window.
// An explicit appointment reference comes first, then the closest target
// check-in, then the earlier target, then the lower ID.
func (i *CheckInIngestor) arrivalCandidates(msg db.InboundMessage, now time.Time) []db.MonitoredAppointment {
	var candidates []db.MonitoredAppointment
	for _, rec := range i.Registry.All() {
		if !sameWorker(rec.AssignedWorker, msg.Sender) {
			continue
		}
		if rec.Status.IsTerminal() {
			continue
		}
		if absDuration(now.Sub(rec.TargetCheckIn)) > i.Settings.MatchWindow {
			continue
		}
		candidates = append(candidates, rec)
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if msg.AppointmentID != "" && (ca.ID == msg.AppointmentID) != (cb.ID == msg.AppointmentID) {
			return ca.ID == msg.AppointmentID
		}
		da, dbb := absDuration(now.Sub(ca.TargetCheckIn)), absDuration(now.Sub(cb.TargetCheckIn))
		if da != dbb {
			return da < dbb
		}
		if !ca.TargetCheckIn.Equal(cb.TargetCheckIn) {
			return ca.TargetCheckIn.Before(cb.TargetCheckIn)
		}
		return ca.ID < cb.ID
	})
	return candidates
}

// handleCompletion acknowledges a finished job. It never changes status;
// it stamps CompletedAt on the sender's latest checked-in, unfinished record.
func (i *CheckInIngestor) handleCompletion(msg db.InboundMessage, now time.Time, result *CheckInResult) {
	var latest *db.MonitoredAppointment
	for _, rec := range i.Registry.All() {
		if !sameWorker(rec.AssignedWorker, msg.Sender) || rec.Status != db.StatusCheckedIn || rec.CompletedAt != nil {
			continue
		}
		if latest == nil || rec.CheckedInAt.After(*latest.CheckedInAt) {
			r := rec
			latest = &r
		}
	}

	var completed *db.MonitoredAppointment
	if latest != nil {
		err := i.Registry.Update(latest.ID, func(rec *db.MonitoredAppointment) error {
			if rec.CompletedAt != nil {
				return nil
			}
			at := now
			rec.CompletedAt = &at
			c := *rec
			completed = &c
			return nil
		})
		if err != nil {
			log.Printf("CheckIn: failed to mark appointment %s complete: %v", latest.ID, err)
		}
	}

	reply := i.Renderer.CompletionAck(msg, completed, now)
	result.Outcome = OutcomeCompletionAck
	result.Reply = &reply
	if completed != nil {
		result.AppointmentID = completed.ID
		log.Printf("CheckIn: %s finished appointment %s", msg.Sender, completed.ID)
	} else {
		log.Printf("CheckIn: completion from %s without a checked-in appointment", msg.Sender)
	}
}

func sameWorker(assigned, sender string) bool {
	return strings.EqualFold(strings.TrimSpace(assigned), strings.TrimSpace(sender))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func formatSignedMinutes(d time.Duration) string {
	if d < 0 {
		return "-" + formatMinutes(d)
	}
	return "+" + formatMinutes(d)
}
