package domain

import (
	"errors"
	"testing"
)

func TestRevokeConsentBlocksContact(t *testing.T) {
	lead := activeLead()
	at := t0.Add(days(10))

	if err := RevokeConsent(&lead, collaboratorCaller(), at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lead.ContactAllowed() || !lead.ContactBlocked {
		t.Fatal("revoked consent must block contact")
	}
	if lead.ConsentRevokedAt == nil || !lead.ConsentRevokedAt.Equal(at) || *lead.ConsentRevokedBy != collaboratorID {
		t.Fatalf("revocation markers = %v / %v", lead.ConsentRevokedAt, lead.ConsentRevokedBy)
	}

	if err := RevokeConsent(&lead, ownerCaller(), at); !errors.Is(err, ErrConsentAlreadyRevoked) {
		t.Fatalf("second revocation error = %v", err)
	}

	other := newTestLead()
	if err := RevokeConsent(&other, strangerCaller(), at); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("stranger revocation error = %v", err)
	}
}

func TestBlockedLeadRefusesMeaningfulContact(t *testing.T) {
	lead := activeLead()
	lead.Status = StatusReminder
	if err := RevokeConsent(&lead, ownerCaller(), t0.Add(days(121))); err != nil {
		t.Fatal(err)
	}
	before := lead.Clone()

	_, err := RecordActivity(&lead, ownerCaller(), ActivityPhoneCall, "called anyway", DefaultClassifier(), t0.Add(days(122)))
	if !errors.Is(err, ErrContactBlocked) {
		t.Fatalf("error = %v, want ErrContactBlocked", err)
	}
	if lead.Status != before.Status || !lead.LastActivityAt.Equal(*before.LastActivityAt) {
		t.Fatal("a refused contact must not touch the clock")
	}

	out, err := RecordActivity(&lead, ownerCaller(), ActivityNote, "consent withdrawn by phone", DefaultClassifier(), t0.Add(days(122)))
	if err != nil {
		t.Fatalf("note on blocked lead: %v", err)
	}
	if out.ClockReset || out.Activity.Meaningful {
		t.Fatal("notes never reset the clock")
	}
}

func TestPseudonymizationDue(t *testing.T) {
	expiredAt := t0.Add(days(180))
	expired := newTestLead()
	expired.Status = StatusExpired
	expired.ExpiredAt = &expiredAt

	done := expired.Clone()
	done.PseudonymizedAt = &expiredAt

	erased := expired.Clone()
	erased.ErasedAt = &expiredAt

	tests := []struct {
		name string
		lead Lead
		now  int
		want bool
	}{
		{"before the delay", expired, 239, false},
		{"at the delay", expired, 240, true},
		{"already pseudonymised", done, 400, false},
		{"erased", erased, 400, false},
		{"not expired", activeLead(), 400, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PseudonymizationDue(tc.lead, t0.Add(days(tc.now)), days(60)); got != tc.want {
				t.Fatalf("PseudonymizationDue = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPseudonymizeIsIdempotent(t *testing.T) {
	lead := newTestLead()
	lead.Status = StatusExpired
	at := t0.Add(days(240))
	company := lead.Contact.CompanyName

	if !Pseudonymize(&lead, at) {
		t.Fatal("first pass should change the lead")
	}
	if lead.Contact.Email != EmailDigest("jan@acme.test") || len(lead.Contact.Email) != 64 {
		t.Errorf("email = %q", lead.Contact.Email)
	}
	if lead.Contact.Phone != "" || lead.Contact.ContactPerson != PseudonymContactPerson {
		t.Errorf("contact = %+v", lead.Contact)
	}
	if lead.Contact.CompanyName != company || lead.Status != StatusExpired {
		t.Error("company and status are kept")
	}
	if lead.PseudonymizedAt == nil || !lead.PseudonymizedAt.Equal(at) {
		t.Errorf("marker = %v", lead.PseudonymizedAt)
	}

	email := lead.Contact.Email
	if Pseudonymize(&lead, at.Add(days(1))) {
		t.Fatal("second pass must be a no-op")
	}
	if lead.Contact.Email != email || !lead.PseudonymizedAt.Equal(at) {
		t.Fatal("second pass must not rehash")
	}
}
