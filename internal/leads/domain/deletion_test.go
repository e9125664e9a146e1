package domain

import (
	"errors"
	"strings"
	"testing"
)

const erasureReason = "data subject request received by mail"

func TestSoftDelete(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		caller     Caller
		dependents int
		wantErr    error
	}{
		{"owner deletes registered lead", StatusRegistered, ownerCaller(), 0, nil},
		{"manager deletes grace lead", StatusGracePeriod, managerCaller(), 0, nil},
		{"open opportunities block", StatusActive, ownerCaller(), 2, ErrDeletionBlocked},
		{"collaborator denied", StatusActive, collaboratorCaller(), 0, ErrAccessDenied},
		{"expired is absorbing", StatusExpired, adminCaller(), 0, ErrInvalidTransition},
		{"already deleted", StatusDeleted, adminCaller(), 0, ErrLeadDeleted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lead := newTestLead()
			lead.Status = tc.status
			lead.ClockStoppedAt = &t0
			lead.StopReason = "pending"

			err := SoftDelete(&lead, tc.caller, tc.dependents, t0.Add(days(1)))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				if lead.Status != tc.status {
					t.Fatalf("refused delete changed status to %s", lead.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lead.Status != StatusDeleted || lead.IsClockStopped() {
				t.Fatalf("lead after delete: status %s, stopped %v", lead.Status, lead.IsClockStopped())
			}
		})
	}
}

func TestDeletionBlockedNamesResourceAndCount(t *testing.T) {
	err := CheckDeletable(3)
	var blocked *DeletionBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected DeletionBlockedError, got %v", err)
	}
	if blocked.Resource != DependentOpportunities || blocked.Count != 3 {
		t.Fatalf("unexpected details: %+v", blocked)
	}
}

func TestEraseAnonymisesAndHashes(t *testing.T) {
	lead := newTestLead()
	wantHash := IdentityHash(lead)
	at := t0.Add(days(3))

	record, err := Erase(&lead, adminCaller(), 0, erasureReason, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.IdentityHash != wantHash || len(record.IdentityHash) != 64 {
		t.Fatalf("hash = %q, want %q", record.IdentityHash, wantHash)
	}
	if record.PreviousStatus != StatusRegistered {
		t.Errorf("previous status = %s", record.PreviousStatus)
	}
	if lead.Status != StatusDeleted {
		t.Errorf("status = %s, want DELETED", lead.Status)
	}
	if !strings.HasPrefix(lead.Contact.CompanyName, "ERASED-") || lead.Contact.Email != "" || lead.Contact.Phone != "" || lead.Contact.ContactPerson != "" {
		t.Errorf("contact not anonymised: %+v", lead.Contact)
	}
	if lead.ErasedAt == nil || !lead.ErasedAt.Equal(at) || lead.ErasedBy == nil || *lead.ErasedBy != adminID {
		t.Errorf("erasure markers not set")
	}
	if record.Reason != erasureReason || record.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("record = %+v", record)
	}
	if lead.ContactAllowed() {
		t.Error("erased lead must not be contactable")
	}

	if _, err := Erase(&lead, adminCaller(), 0, erasureReason, at); !errors.Is(err, ErrAlreadyErased) {
		t.Fatalf("second erase error = %v", err)
	}
}

func TestEraseKeepsExpiredStatus(t *testing.T) {
	lead := newTestLead()
	lead.Status = StatusExpired
	if _, err := Erase(&lead, managerCaller(), 0, erasureReason, t0); err != nil {
		t.Fatal(err)
	}
	if lead.Status != StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", lead.Status)
	}
}

func TestEraseGuards(t *testing.T) {
	lead := newTestLead()
	if _, err := Erase(&lead, ownerCaller(), 0, erasureReason, t0); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("sales erase error = %v", err)
	}
	if _, err := Erase(&lead, adminCaller(), 1, erasureReason, t0); !errors.Is(err, ErrDeletionBlocked) {
		t.Fatalf("blocked erase error = %v", err)
	}
	if _, err := Erase(&lead, adminCaller(), 0, "   ", t0); !errors.Is(err, ErrErasureReasonRequired) {
		t.Fatalf("blank reason error = %v", err)
	}
	if lead.IsErased() || lead.Contact.Email == "" {
		t.Fatal("refused erase must not touch the lead")
	}
}

func TestIdentityHashIsCaseInsensitiveOnEmail(t *testing.T) {
	a := newTestLead()
	b := a.Clone()
	b.Contact.Email = strings.ToUpper(a.Contact.Email)
	if IdentityHash(a) != IdentityHash(b) {
		t.Fatal("e-mail case should not change the identity hash")
	}
	b.Contact.CompanyName = "Other BV"
	if IdentityHash(a) == IdentityHash(b) {
		t.Fatal("company change should change the identity hash")
	}
}
