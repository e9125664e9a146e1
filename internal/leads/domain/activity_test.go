package domain

import (
	"errors"
	"testing"
)

func TestRecordActivityEffects(t *testing.T) {
	callAt := t0.Add(days(30))

	tests := []struct {
		name          string
		lead          func() Lead
		caller        Caller
		activity      ActivityType
		wantStatus    Status
		wantClockSet  bool
		wantErr       error
		wantTransited bool
	}{
		{"owner call activates registered lead", newTestLead, ownerCaller(), ActivityPhoneCall, StatusActive, true, nil, true},
		{"admin meeting activates registered lead", newTestLead, adminCaller(), ActivityMeeting, StatusActive, true, nil, true},
		{"collaborator call keeps registered status", newTestLead, collaboratorCaller(), ActivityEmail, StatusRegistered, true, nil, false},
		{"note never resets the clock", newTestLead, ownerCaller(), ActivityNote, StatusRegistered, false, nil, false},
		{"collaborator call on active lead resets clock", activeLead, collaboratorCaller(), ActivitySiteVisit, StatusActive, true, nil, false},
		{"stranger is denied", newTestLead, strangerCaller(), ActivityPhoneCall, StatusRegistered, false, ErrAccessDenied, false},
		{"expired lead records without effect", func() Lead {
			l := activeLead()
			l.Status = StatusExpired
			return l
		}, ownerCaller(), ActivityPhoneCall, StatusExpired, false, nil, false},
		{"deleted lead refuses activity", func() Lead {
			l := activeLead()
			l.Status = StatusDeleted
			return l
		}, ownerCaller(), ActivityPhoneCall, StatusDeleted, false, ErrLeadDeleted, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lead := tc.lead()
			before := lead.LastActivityAt

			out, err := RecordActivity(&lead, tc.caller, tc.activity, "spoke with the customer", DefaultClassifier(), callAt)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lead.Status != tc.wantStatus {
				t.Errorf("status = %s, want %s", lead.Status, tc.wantStatus)
			}
			if out.Transition != tc.wantTransited {
				t.Errorf("transition = %v, want %v", out.Transition, tc.wantTransited)
			}
			if out.ClockReset != tc.wantClockSet {
				t.Errorf("clock reset = %v, want %v", out.ClockReset, tc.wantClockSet)
			}
			if tc.wantClockSet && (lead.LastActivityAt == nil || !lead.LastActivityAt.Equal(callAt)) {
				t.Errorf("lastActivityAt = %v, want %v", lead.LastActivityAt, callAt)
			}
			if !tc.wantClockSet && lead.LastActivityAt != before {
				t.Errorf("lastActivityAt changed without a clock reset")
			}
			if out.Activity.LeadID != lead.ID || out.Activity.Type != tc.activity {
				t.Errorf("activity not built for the lead: %+v", out.Activity)
			}
		})
	}
}

func TestClassifierHonoursConfiguration(t *testing.T) {
	c := NewClassifier([]string{"meeting", "NOTE", "STATUS_CHANGE", "bogus"}, 10)

	if !c.IsMeaningful(ActivityMeeting, "on-site measurement") {
		t.Error("configured type with long description should be meaningful")
	}
	if c.IsMeaningful(ActivityMeeting, "short") {
		t.Error("description below the minimum should not count")
	}
	if !c.IsMeaningful(ActivityNote, "promoted note body") {
		t.Error("NOTE can be promoted by configuration")
	}
	if c.IsMeaningful(ActivityStatusChange, "system generated entry") {
		t.Error("system types are never meaningful")
	}
	if c.IsMeaningful(ActivityPhoneCall, "not in the configured list") {
		t.Error("unconfigured type should not count")
	}
}

func TestParseActivityType(t *testing.T) {
	if got, err := ParseActivityType(" phone_call "); err != nil || got != ActivityPhoneCall {
		t.Fatalf("ParseActivityType = %q, %v", got, err)
	}
	if _, err := ParseActivityType("CLOCK_STOPPED"); !errors.Is(err, ErrSystemActivityType) {
		t.Fatalf("system type error = %v", err)
	}
	if _, err := ParseActivityType("FAX"); err == nil {
		t.Fatal("expected error for unknown type")
	}
}
