package domain

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// DependentOpportunities names the resource type that blocks deletion.
const DependentOpportunities = "opportunities"

var (
	ErrAlreadyErased         = errors.New("lead personal data was already erased")
	ErrErasureReasonRequired = errors.New("erasure reason is required")
)

// CheckDeletable refuses deletion while open dependents exist.
func CheckDeletable(openDependents int) error {
	if openDependents > 0 {
		return &DeletionBlockedError{Resource: DependentOpportunities, Count: openDependents}
	}
	return nil
}

// SoftDelete moves a non-terminal lead to DELETED. The row is kept.
func SoftDelete(lead *Lead, caller Caller, openDependents int, now time.Time) error {
	if !CanDelete(*lead, caller) {
		return ErrAccessDenied
	}
	if lead.Status == StatusDeleted {
		return ErrLeadDeleted
	}
	if err := ValidateTransition(*lead, Transition{To: StatusDeleted, Trigger: TriggerDeletion, Caller: caller, At: now}); err != nil {
		return err
	}
	if err := CheckDeletable(openDependents); err != nil {
		return err
	}
	if err := ApplyTransition(lead, Transition{To: StatusDeleted, Trigger: TriggerDeletion, Caller: caller, At: now}); err != nil {
		return err
	}
	clearClockStop(lead)
	return nil
}

// ErasureRecord is the audit trail left behind by a GDPR erasure.
type ErasureRecord struct {
	ID             uuid.UUID
	LeadID         uuid.UUID
	IdentityHash   string
	PreviousStatus Status
	ErasedAt       time.Time
	ErasedBy       uuid.UUID
	Reason         string
}

// Erase anonymises the lead's personal data and blocks further contact.
// Non-terminal leads also move to DELETED; EXPIRED leads keep their status.
func Erase(lead *Lead, caller Caller, openDependents int, reason string, now time.Time) (ErasureRecord, error) {
	if !CanErase(caller) {
		return ErasureRecord{}, ErrAccessDenied
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErasureRecord{}, ErrErasureReasonRequired
	}
	if lead.IsErased() {
		return ErasureRecord{}, ErrAlreadyErased
	}
	if err := CheckDeletable(openDependents); err != nil {
		return ErasureRecord{}, err
	}

	record := ErasureRecord{
		ID:             uuid.New(),
		LeadID:         lead.ID,
		IdentityHash:   IdentityHash(*lead),
		PreviousStatus: lead.Status,
		ErasedAt:       now,
		ErasedBy:       caller.UserID,
		Reason:         reason,
	}

	if !lead.Status.IsTerminal() {
		if err := ApplyTransition(lead, Transition{To: StatusDeleted, Trigger: TriggerDeletion, Caller: caller, At: now}); err != nil {
			return ErasureRecord{}, err
		}
	}
	clearClockStop(lead)
	lead.Contact = Contact{CompanyName: "ERASED-" + shortID(lead.ID)}
	lead.ErasedAt = timePtr(now)
	lead.ErasedBy = &record.ErasedBy
	lead.ContactBlocked = true
	lead.touch(&caller.UserID, now)
	return record, nil
}

// IdentityHash is the SHA3-256 digest of the lead's identifying fields.
func IdentityHash(lead Lead) string {
	parts := []string{
		lead.ID.String(),
		lead.Contact.CompanyName,
		strings.ToLower(lead.Contact.Email),
		lead.Contact.ContactPerson,
		lead.Contact.Phone,
	}
	sum := sha3.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func shortID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")[:8]
}
