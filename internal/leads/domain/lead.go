package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Terms are the protection durations copied onto a lead at registration, so
// later changes to the owner's settings never alter existing leads.
type Terms struct {
	Months       int // full protection length
	ReminderDays int // days before expiry at which REMINDER starts (the "60 days")
	GraceDays    int // length of the grace period before expiry (the "10 days")
}

// Contact holds the personally identifiable fields subject to GDPR erasure.
type Contact struct {
	CompanyName   string
	ContactPerson string
	Email         string
	Phone         string
	Street        string
	PostalCode    string
	City          string
	Notes         string
}

// Lead is the persisted lead record the lifecycle engine operates on.
type Lead struct {
	ID      uuid.UUID
	Version int64

	Status          Status
	OwnerUserID     uuid.UUID
	CollaboratorIDs []uuid.UUID

	RegisteredAt       time.Time
	LastActivityAt     *time.Time
	ReminderSentAt     *time.Time
	GracePeriodStartAt *time.Time
	ExpiredAt          *time.Time

	ClockStoppedAt *time.Time
	StopReason     string
	StopApprovedBy *uuid.UUID
	// PausedTotal accumulates the stopped intervals since the clock anchor.
	PausedTotal time.Duration

	Terms       Terms
	TerritoryID *uuid.UUID

	Contact  Contact
	ErasedAt *time.Time
	ErasedBy *uuid.UUID

	// ContactBlocked is set by consent revocation and by erasure.
	ContactBlocked   bool
	ConsentRevokedAt *time.Time
	ConsentRevokedBy *uuid.UUID
	PseudonymizedAt  *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	UpdatedBy *uuid.UUID
}

// NewLead builds a freshly registered lead: status REGISTERED, no timers.
func NewLead(owner uuid.UUID, terms Terms, contact Contact, territory *uuid.UUID, now time.Time) Lead {
	return Lead{
		ID:           uuid.New(),
		Version:      1,
		Status:       StatusRegistered,
		OwnerUserID:  owner,
		RegisteredAt: now,
		Terms:        terms,
		TerritoryID:  territory,
		Contact:      contact,
		CreatedAt:    now,
		UpdatedAt:    now,
		UpdatedBy:    &owner,
	}
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (l Lead) Clone() Lead {
	out := l
	out.CollaboratorIDs = slices.Clone(l.CollaboratorIDs)
	out.LastActivityAt = cloneTime(l.LastActivityAt)
	out.ReminderSentAt = cloneTime(l.ReminderSentAt)
	out.GracePeriodStartAt = cloneTime(l.GracePeriodStartAt)
	out.ExpiredAt = cloneTime(l.ExpiredAt)
	out.ClockStoppedAt = cloneTime(l.ClockStoppedAt)
	out.ErasedAt = cloneTime(l.ErasedAt)
	out.ConsentRevokedAt = cloneTime(l.ConsentRevokedAt)
	out.PseudonymizedAt = cloneTime(l.PseudonymizedAt)
	out.StopApprovedBy = cloneUUID(l.StopApprovedBy)
	out.TerritoryID = cloneUUID(l.TerritoryID)
	out.ErasedBy = cloneUUID(l.ErasedBy)
	out.ConsentRevokedBy = cloneUUID(l.ConsentRevokedBy)
	out.UpdatedBy = cloneUUID(l.UpdatedBy)
	return out
}

// IsClockStopped reports whether protection decay is paused.
func (l Lead) IsClockStopped() bool {
	return l.ClockStoppedAt != nil
}

// IsErased reports whether GDPR erasure already ran.
func (l Lead) IsErased() bool {
	return l.ErasedAt != nil
}

// ContactAllowed reports whether the lead may still be contacted.
func (l Lead) ContactAllowed() bool {
	return !l.ContactBlocked && !l.IsErased()
}

// IsOwner reports whether user owns the lead.
func (l Lead) IsOwner(user uuid.UUID) bool {
	return user != uuid.Nil && l.OwnerUserID == user
}

// IsCollaborator reports whether user is in the collaborator set.
func (l Lead) IsCollaborator(user uuid.UUID) bool {
	return user != uuid.Nil && slices.Contains(l.CollaboratorIDs, user)
}

// AddCollaborator adds user to the collaborator set. The owner is never added.
func (l *Lead) AddCollaborator(user uuid.UUID) {
	if user == uuid.Nil || user == l.OwnerUserID || l.IsCollaborator(user) {
		return
	}
	l.CollaboratorIDs = append(l.CollaboratorIDs, user)
}

// RemoveCollaborator removes user from the collaborator set.
func (l *Lead) RemoveCollaborator(user uuid.UUID) {
	l.CollaboratorIDs = slices.DeleteFunc(l.CollaboratorIDs, func(id uuid.UUID) bool { return id == user })
}

// ClockAnchor is the instant protection decay is measured from.
func (l Lead) ClockAnchor() time.Time {
	if l.LastActivityAt != nil {
		return *l.LastActivityAt
	}
	return l.RegisteredAt
}

func (l *Lead) touch(by *uuid.UUID, now time.Time) {
	l.UpdatedAt = now
	if by != nil && *by != uuid.Nil {
		l.UpdatedBy = cloneUUID(by)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
