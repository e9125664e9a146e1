package domain

import "time"

const day = 24 * time.Hour

// Thresholds are the elapsed-time boundaries derived from a lead's terms.
type Thresholds struct {
	Reminder time.Duration
	Grace    time.Duration
	Expiry   time.Duration
}

// ThresholdsFor converts terms into durations using monthDays-long months.
func ThresholdsFor(terms Terms, monthDays int) Thresholds {
	if monthDays <= 0 {
		monthDays = 30
	}
	expiry := time.Duration(terms.Months*monthDays) * day
	return Thresholds{
		Reminder: expiry - time.Duration(terms.ReminderDays)*day,
		Grace:    expiry - time.Duration(terms.GraceDays)*day,
		Expiry:   expiry,
	}
}

// Phase returns the clock phase an elapsed duration falls into.
func (t Thresholds) Phase(elapsed time.Duration) Status {
	switch {
	case elapsed >= t.Expiry:
		return StatusExpired
	case elapsed >= t.Grace:
		return StatusGracePeriod
	case elapsed >= t.Reminder:
		return StatusReminder
	default:
		return StatusActive
	}
}

// Clock computes protection phases. It holds no state besides the month length.
type Clock struct {
	MonthDays int
}

// NewClock returns a Clock with monthDays-long months.
func NewClock(monthDays int) Clock {
	return Clock{MonthDays: monthDays}
}

// Elapsed returns the effective protected time consumed at now: time since the
// anchor minus all paused time. A stopped clock is frozen at the later of the
// stop instant and the anchor.
func (c Clock) Elapsed(lead Lead, now time.Time) time.Duration {
	anchor := lead.ClockAnchor()
	effectiveNow := now
	if lead.ClockStoppedAt != nil {
		effectiveNow = *lead.ClockStoppedAt
		if effectiveNow.Before(anchor) {
			effectiveNow = anchor
		}
	}
	elapsed := effectiveNow.Sub(anchor) - lead.PausedTotal
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// Target returns the phase the lead should be in at now. Terminal leads keep
// their status.
func (c Clock) Target(lead Lead, now time.Time) Status {
	if lead.Status.IsTerminal() {
		return lead.Status
	}
	return ThresholdsFor(lead.Terms, c.MonthDays).Phase(c.Elapsed(lead, now))
}

// Projection is a read model of where a lead stands on its protection clock.
type Projection struct {
	Status         Status
	Target         Status
	Elapsed        time.Duration
	Remaining      time.Duration
	NextTransition Status
	UntilNext      time.Duration
	ReminderAt     *time.Time
	GraceAt        *time.Time
	ExpiresAt      *time.Time
	ClockStopped   bool
}

// RemainingDays rounds remaining protection up to whole days.
func (p Projection) RemainingDays() int {
	return ceilDays(p.Remaining)
}

// DaysUntilNext rounds the time to the next boundary up to whole days.
func (p Projection) DaysUntilNext() int {
	return ceilDays(p.UntilNext)
}

// Project computes the protection status at now. Boundary instants are only
// projected while the clock runs; a stopped clock has no future boundary.
func (c Clock) Project(lead Lead, now time.Time) Projection {
	th := ThresholdsFor(lead.Terms, c.MonthDays)
	elapsed := c.Elapsed(lead, now)
	p := Projection{
		Status:       lead.Status,
		Target:       c.Target(lead, now),
		Elapsed:      elapsed,
		ClockStopped: lead.IsClockStopped(),
	}
	if lead.Status.IsTerminal() {
		return p
	}

	if elapsed < th.Expiry {
		p.Remaining = th.Expiry - elapsed
	}
	switch {
	case elapsed < th.Reminder:
		p.NextTransition, p.UntilNext = StatusReminder, th.Reminder-elapsed
	case elapsed < th.Grace:
		p.NextTransition, p.UntilNext = StatusGracePeriod, th.Grace-elapsed
	case elapsed < th.Expiry:
		p.NextTransition, p.UntilNext = StatusExpired, th.Expiry-elapsed
	}

	if !p.ClockStopped {
		base := now.Add(-elapsed)
		p.ReminderAt = timePtr(base.Add(th.Reminder))
		p.GraceAt = timePtr(base.Add(th.Grace))
		p.ExpiresAt = timePtr(base.Add(th.Expiry))
	}
	return p
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
