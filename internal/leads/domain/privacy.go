package domain

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// PseudonymContactPerson replaces the contact person of a pseudonymised lead.
const PseudonymContactPerson = "ANONYMIZED"

var (
	ErrConsentAlreadyRevoked = errors.New("consent was already revoked for this lead")
	ErrContactBlocked        = errors.New("contact with this lead is blocked")
)

// RevokeConsent records that the lead withdrew consent and blocks contact.
// Anyone who can read the lead may record it.
func RevokeConsent(lead *Lead, caller Caller, now time.Time) error {
	if !CanAccess(*lead, caller) {
		return ErrAccessDenied
	}
	if lead.ConsentRevokedAt != nil {
		return ErrConsentAlreadyRevoked
	}
	by := caller.UserID
	lead.ConsentRevokedAt = timePtr(now)
	lead.ConsentRevokedBy = &by
	lead.ContactBlocked = true
	lead.touch(&by, now)
	return nil
}

// PseudonymizationDue reports whether an EXPIRED lead has kept its contact
// details for longer than after.
func PseudonymizationDue(lead Lead, now time.Time, after time.Duration) bool {
	if lead.Status != StatusExpired || lead.ExpiredAt == nil {
		return false
	}
	if lead.PseudonymizedAt != nil || lead.IsErased() {
		return false
	}
	return !now.Before(lead.ExpiredAt.Add(after))
}

// Pseudonymize replaces the e-mail with its digest and drops the phone and
// contact person. PseudonymizedAt makes it idempotent; it reports whether
// anything changed.
func Pseudonymize(lead *Lead, now time.Time) bool {
	if lead.PseudonymizedAt != nil || lead.IsErased() {
		return false
	}
	if lead.Contact.Email != "" {
		lead.Contact.Email = EmailDigest(lead.Contact.Email)
	}
	lead.Contact.Phone = ""
	lead.Contact.ContactPerson = PseudonymContactPerson
	lead.PseudonymizedAt = timePtr(now)
	lead.touch(nil, now)
	return true
}

// EmailDigest is the SHA3-256 hex digest of the lower-cased address.
func EmailDigest(email string) string {
	sum := sha3.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
