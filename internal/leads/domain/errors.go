package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied        = errors.New("access denied")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrVersionConflict     = errors.New("lead was modified concurrently")
	ErrDeletionBlocked     = errors.New("deletion blocked by dependent resources")
	ErrClockAlreadyStopped = errors.New("protection clock is already stopped")
	ErrClockNotStopped     = errors.New("protection clock is not stopped")
	ErrStopReasonRequired  = errors.New("stop reason is required")
	ErrLeadDeleted         = errors.New("lead is deleted")
	ErrLeadNotFound        = errors.New("lead not found")
)

// TransitionError reports a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// DeletionBlockedError names the resource type and count preventing deletion.
type DeletionBlockedError struct {
	Resource string
	Count    int
}

func (e *DeletionBlockedError) Error() string {
	return fmt.Sprintf("deletion blocked: %d open %s", e.Count, e.Resource)
}

func (e *DeletionBlockedError) Unwrap() error { return ErrDeletionBlocked }

func invalidTransition(from, to Status) error {
	return &TransitionError{From: from, To: to}
}
