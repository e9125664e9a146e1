package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PauseInterval describes one completed stop/resume cycle.
type PauseInterval struct {
	StoppedAt time.Time
	ResumedAt time.Time
	Paused    time.Duration
	Reason    string
	StoppedBy *uuid.UUID
}

// StopClock pauses protection decay. The caller becomes the approver.
func StopClock(lead *Lead, caller Caller, reason string, now time.Time) error {
	if !caller.Can(CapabilityStopClock) {
		return ErrAccessDenied
	}
	if lead.Status == StatusDeleted {
		return ErrLeadDeleted
	}
	if lead.Status.IsTerminal() {
		return invalidTransition(lead.Status, lead.Status)
	}
	if lead.IsClockStopped() {
		return ErrClockAlreadyStopped
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrStopReasonRequired
	}

	approver := caller.UserID
	lead.ClockStoppedAt = timePtr(now)
	lead.StopReason = reason
	lead.StopApprovedBy = &approver
	lead.touch(&approver, now)
	return nil
}

// ResumeClock restarts protection decay and folds the paused interval into the
// lead's accumulated paused time. Time before the clock anchor is never
// counted, so an activity recorded while stopped does not double-count.
func ResumeClock(lead *Lead, caller Caller, now time.Time) (PauseInterval, error) {
	if !caller.Can(CapabilityStopClock) {
		return PauseInterval{}, ErrAccessDenied
	}
	if lead.Status == StatusDeleted {
		return PauseInterval{}, ErrLeadDeleted
	}
	if !lead.IsClockStopped() {
		return PauseInterval{}, ErrClockNotStopped
	}

	from := *lead.ClockStoppedAt
	if anchor := lead.ClockAnchor(); from.Before(anchor) {
		from = anchor
	}
	paused := now.Sub(from)
	if paused < 0 {
		paused = 0
	}

	interval := PauseInterval{
		StoppedAt: *lead.ClockStoppedAt,
		ResumedAt: now,
		Paused:    paused,
		Reason:    lead.StopReason,
		StoppedBy: cloneUUID(lead.StopApprovedBy),
	}

	lead.PausedTotal += paused
	clearClockStop(lead)
	lead.touch(&caller.UserID, now)
	return interval, nil
}

func clearClockStop(lead *Lead) {
	lead.ClockStoppedAt = nil
	lead.StopReason = ""
	lead.StopApprovedBy = nil
}
