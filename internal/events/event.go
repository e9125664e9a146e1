// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"lead_protection_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// =============================================================================
// Lead Lifecycle Events
// =============================================================================

// LeadRegistered is published when a user registers a new protected lead.
type LeadRegistered struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	CompanyName string    `json:"companyName"`
}

func (e LeadRegistered) EventName() string { return "leads.lead.registered" }

// LeadStatusChanged is published for every persisted status change.
type LeadStatusChanged struct {
	BaseEvent
	LeadID      uuid.UUID  `json:"leadId"`
	OwnerUserID uuid.UUID  `json:"ownerUserId"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Trigger     string     `json:"trigger"`
	ActorID     *uuid.UUID `json:"actorId,omitempty"`
}

func (e LeadStatusChanged) EventName() string { return "leads.lead.status_changed" }

// ProtectionNotice carries what an owner needs to know about a decaying lead.
type ProtectionNotice struct {
	LeadID      uuid.UUID  `json:"leadId"`
	OwnerUserID uuid.UUID  `json:"ownerUserId"`
	CompanyName string     `json:"companyName"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// LeadReminderDue is published when a lead enters REMINDER.
type LeadReminderDue struct {
	BaseEvent
	ProtectionNotice
}

func (e LeadReminderDue) EventName() string { return "leads.protection.reminder_due" }

// LeadGracePeriodStarted is published when a lead enters GRACE_PERIOD.
type LeadGracePeriodStarted struct {
	BaseEvent
	ProtectionNotice
}

func (e LeadGracePeriodStarted) EventName() string { return "leads.protection.grace_started" }

// LeadProtectionExpired is published when a lead's protection runs out.
type LeadProtectionExpired struct {
	BaseEvent
	ProtectionNotice
}

func (e LeadProtectionExpired) EventName() string { return "leads.protection.expired" }

// LeadClockStopped is published when protection decay is paused.
type LeadClockStopped struct {
	BaseEvent
	LeadID     uuid.UUID `json:"leadId"`
	Reason     string    `json:"reason"`
	ApprovedBy uuid.UUID `json:"approvedBy"`
}

func (e LeadClockStopped) EventName() string { return "leads.protection.clock_stopped" }

// LeadClockResumed is published when protection decay restarts.
type LeadClockResumed struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	PausedSeconds int64     `json:"pausedSeconds"`
}

func (e LeadClockResumed) EventName() string { return "leads.protection.clock_resumed" }

// LeadOwnershipTransferred is published after a privileged owner change.
type LeadOwnershipTransferred struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	PreviousOwner uuid.UUID `json:"previousOwner"`
	NewOwner      uuid.UUID `json:"newOwner"`
	TransferredBy uuid.UUID `json:"transferredBy"`
}

func (e LeadOwnershipTransferred) EventName() string { return "leads.lead.ownership_transferred" }

// LeadErased is published after a GDPR erasure. It never carries PII.
type LeadErased struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	IdentityHash string    `json:"identityHash"`
	ErasedBy     uuid.UUID `json:"erasedBy"`
}

func (e LeadErased) EventName() string { return "leads.lead.erased" }

// ProtectionNoticeDue is published by the scheduler worker when a queued
// owner notice is ready for delivery.
type ProtectionNoticeDue struct {
	BaseEvent
	ProtectionNotice
	Kind string `json:"kind"`
}

func (e ProtectionNoticeDue) EventName() string { return "leads.protection.notice_due" }

// LeadConsentRevoked is published when a lead withdraws consent to contact.
type LeadConsentRevoked struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
	RevokedBy   uuid.UUID `json:"revokedBy"`
}

func (e LeadConsentRevoked) EventName() string { return "leads.lead.consent_revoked" }

// LeadsPseudonymized is published once per run that pseudonymised expired
// leads. It carries only the count.
type LeadsPseudonymized struct {
	BaseEvent
	Count int `json:"count"`
}

func (e LeadsPseudonymized) EventName() string { return "leads.privacy.pseudonymized" }
