// Package domain provides core business rules for the lead protection lifecycle.
//
// Everything in this package is pure: functions take a Lead and an instant and
// either compute something or mutate the Lead value in memory. Persistence,
// versioning and identity resolution live in the service and repository layers.
package domain

import (
	"fmt"
	"strings"
)

// Status is the lifecycle phase of a lead.
type Status string

const (
	StatusRegistered  Status = "REGISTERED"
	StatusActive      Status = "ACTIVE"
	StatusReminder    Status = "REMINDER"
	StatusGracePeriod Status = "GRACE_PERIOD"
	StatusExpired     Status = "EXPIRED"
	StatusDeleted     Status = "DELETED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusRegistered,
	StatusActive,
	StatusReminder,
	StatusGracePeriod,
	StatusExpired,
	StatusDeleted,
}

// rank orders the clock-driven phases. REGISTERED and ACTIVE share the first
// rung because both decay towards REMINDER.
var rank = map[Status]int{
	StatusRegistered:  0,
	StatusActive:      0,
	StatusReminder:    1,
	StatusGracePeriod: 2,
	StatusExpired:     3,
}

// ParseStatus converts a string to a Status, case-insensitively.
func ParseStatus(value string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(value)))
	for _, s := range AllStatuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown lead status %q", value)
}

// IsTerminal reports whether no further transition can leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusDeleted
}

// IsDecaying reports whether a sweep may still move the lead forward.
func (s Status) IsDecaying() bool {
	switch s {
	case StatusRegistered, StatusActive, StatusReminder, StatusGracePeriod:
		return true
	default:
		return false
	}
}

// Before reports whether s is an earlier clock phase than other.
// Statuses outside the clock path (DELETED) are never before anything.
func (s Status) Before(other Status) bool {
	a, okA := rank[s]
	b, okB := rank[other]
	return okA && okB && a < b
}

func (s Status) String() string { return string(s) }
