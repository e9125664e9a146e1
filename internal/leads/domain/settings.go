package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTerms = errors.New("protection terms are inconsistent")

// Settings are a user's lead defaults: the terms copied onto leads they
// register, their capability grants and where owner notices go.
type Settings struct {
	UserID            uuid.UUID
	Terms             Terms
	Capabilities      []Capability
	NotificationEmail string
	UpdatedAt         time.Time
	UpdatedBy         *uuid.UUID
}

// Validate checks the terms against a month length: grace shorter than the
// reminder window, and the reminder window shorter than the whole period.
func (t Terms) Validate(monthDays int) error {
	if t.Months <= 0 || t.GraceDays <= 0 || t.ReminderDays <= t.GraceDays {
		return ErrInvalidTerms
	}
	if monthDays > 0 && t.ReminderDays >= t.Months*monthDays {
		return ErrInvalidTerms
	}
	return nil
}
