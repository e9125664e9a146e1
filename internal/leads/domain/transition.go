package domain

import (
	"slices"
	"time"
)

// Trigger names what caused a transition request.
type Trigger string

const (
	// TriggerManual is an explicit status change requested by a caller.
	TriggerManual Trigger = "MANUAL"
	// TriggerActivity is a meaningful activity being recorded.
	TriggerActivity Trigger = "ACTIVITY"
	// TriggerSweep is the system clock sweep.
	TriggerSweep Trigger = "SWEEP"
	// TriggerDeletion is an approved soft delete or erasure.
	TriggerDeletion Trigger = "DELETION"
)

// Transition is a command to move a lead to another status.
type Transition struct {
	To      Status
	Trigger Trigger
	Caller  Caller
	At      time.Time
}

type edge struct {
	from Status
	to   Status
}

type guard func(lead Lead, t Transition) error

type rule struct {
	triggers []Trigger
	guard    guard
}

var transitionRules = buildRules()

func buildRules() map[edge]rule {
	sweep := rule{triggers: []Trigger{TriggerSweep}, guard: clockRunning}
	reactivate := rule{triggers: []Trigger{TriggerActivity}}
	del := rule{triggers: []Trigger{TriggerDeletion}}

	rules := map[edge]rule{
		{StatusRegistered, StatusActive}: {
			triggers: []Trigger{TriggerManual, TriggerActivity},
			guard:    ownerOrAdmin,
		},
		// A never-activated lead decays like an active one.
		{StatusRegistered, StatusReminder}: sweep,
		{StatusActive, StatusReminder}:     sweep,
		{StatusReminder, StatusGracePeriod}: sweep,
		{StatusGracePeriod, StatusExpired}:  sweep,
		{StatusReminder, StatusActive}:      reactivate,
		{StatusGracePeriod, StatusActive}:   reactivate,
	}
	for _, s := range AllStatuses {
		if !s.IsTerminal() {
			rules[edge{s, StatusDeleted}] = del
		}
	}
	return rules
}

func clockRunning(lead Lead, t Transition) error {
	if lead.IsClockStopped() {
		return invalidTransition(lead.Status, t.To)
	}
	return nil
}

func ownerOrAdmin(lead Lead, t Transition) error {
	if t.Caller.IsAdmin() || lead.IsOwner(t.Caller.UserID) {
		return nil
	}
	return ErrAccessDenied
}

// AllowedTransitions lists the statuses reachable from s by any trigger.
func AllowedTransitions(s Status) []Status {
	var out []Status
	for _, to := range AllStatuses {
		if _, ok := transitionRules[edge{s, to}]; ok {
			out = append(out, to)
		}
	}
	return out
}

// ValidateTransition checks that t is a legal edge for its trigger and that the
// edge guard passes.
func ValidateTransition(lead Lead, t Transition) error {
	r, ok := transitionRules[edge{lead.Status, t.To}]
	if !ok || !slices.Contains(r.triggers, t.Trigger) {
		return invalidTransition(lead.Status, t.To)
	}
	if t.Trigger == TriggerManual && !t.Caller.IsAdmin() && !lead.IsOwner(t.Caller.UserID) {
		return ErrAccessDenied
	}
	if r.guard != nil {
		return r.guard(lead, t)
	}
	return nil
}

// ApplyTransition validates t and mutates lead accordingly. Boundary markers
// are stamped only when unset; a move back to ACTIVE re-anchors the clock and
// clears them.
func ApplyTransition(lead *Lead, t Transition) error {
	if err := ValidateTransition(*lead, t); err != nil {
		return err
	}
	lead.Status = t.To

	switch t.To {
	case StatusActive:
		reanchor(lead, t.At)
	case StatusReminder:
		if lead.ReminderSentAt == nil {
			lead.ReminderSentAt = timePtr(t.At)
		}
	case StatusGracePeriod:
		if lead.GracePeriodStartAt == nil {
			lead.GracePeriodStartAt = timePtr(t.At)
		}
	case StatusExpired:
		if lead.ExpiredAt == nil {
			lead.ExpiredAt = timePtr(t.At)
		}
	}

	lead.touch(&t.Caller.UserID, t.At)
	return nil
}

// reanchor restarts protection at instant at.
func reanchor(lead *Lead, at time.Time) {
	lead.LastActivityAt = timePtr(at)
	lead.PausedTotal = 0
	lead.ReminderSentAt = nil
	lead.GracePeriodStartAt = nil
	lead.ExpiredAt = nil
}

var sweepNext = map[Status]Status{
	StatusRegistered:  StatusReminder,
	StatusActive:      StatusReminder,
	StatusReminder:    StatusGracePeriod,
	StatusGracePeriod: StatusExpired,
}

// Advance moves lead forward along sweep edges until it reaches the phase the
// clock computes for now, one edge at a time. It returns the statuses entered,
// in order. Each marker is stamped at the boundary instant the clock crossed,
// so a late sweep still records when the phase began. Stopped clocks and
// terminal leads are left untouched.
func Advance(lead *Lead, clock Clock, now time.Time) ([]Status, error) {
	if lead.IsClockStopped() || lead.Status.IsTerminal() {
		return nil, nil
	}
	target := clock.Target(*lead, now)
	p := clock.Project(*lead, now)
	boundary := map[Status]*time.Time{
		StatusReminder:    p.ReminderAt,
		StatusGracePeriod: p.GraceAt,
		StatusExpired:     p.ExpiresAt,
	}

	var entered []Status
	for lead.Status.Before(target) {
		next, ok := sweepNext[lead.Status]
		if !ok {
			break
		}
		at := now
		if b := boundary[next]; b != nil && b.Before(now) {
			at = *b
		}
		if err := ApplyTransition(lead, Transition{To: next, Trigger: TriggerSweep, Caller: SystemCaller, At: at}); err != nil {
			return entered, err
		}
		entered = append(entered, next)
	}
	if len(entered) > 0 {
		lead.touch(nil, now)
	}
	return entered, nil
}

// LastProtectionPhase returns the last REMINDER, GRACE_PERIOD or EXPIRED
// status in entered, or "" when none was entered.
func LastProtectionPhase(entered []Status) Status {
	for i := len(entered) - 1; i >= 0; i-- {
		switch entered[i] {
		case StatusReminder, StatusGracePeriod, StatusExpired:
			return entered[i]
		}
	}
	return ""
}
