package domain

import (
	"time"

	"github.com/google/uuid"
)

var (
	t0             = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ownerID        = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	collaboratorID = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	strangerID     = uuid.MustParse("33333333-3333-3333-3333-333333333333")
	adminID        = uuid.MustParse("44444444-4444-4444-4444-444444444444")
	managerID      = uuid.MustParse("55555555-5555-5555-5555-555555555555")
)

func standardTerms() Terms {
	return Terms{Months: 6, ReminderDays: 60, GraceDays: 10}
}

func newTestLead() Lead {
	lead := NewLead(ownerID, standardTerms(), Contact{
		CompanyName:   "Acme BV",
		ContactPerson: "Jan de Vries",
		Email:         "Jan@Acme.test",
		Phone:         "+31201234567",
		City:          "Amsterdam",
	}, nil, t0)
	lead.AddCollaborator(collaboratorID)
	return lead
}

func ownerCaller() Caller {
	return Caller{UserID: ownerID, Roles: []Role{RoleSales}, Capabilities: []Capability{CapabilityStopClock}}
}

func collaboratorCaller() Caller {
	return Caller{UserID: collaboratorID, Roles: []Role{RoleSales}}
}

func strangerCaller() Caller {
	return Caller{UserID: strangerID, Roles: []Role{RoleSales}}
}

func adminCaller() Caller {
	return Caller{UserID: adminID, Roles: []Role{RoleAdmin}}
}

func managerCaller() Caller {
	return Caller{UserID: managerID, Roles: []Role{RoleManager}}
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// activeLead returns a lead activated by its owner at t0.
func activeLead() Lead {
	lead := newTestLead()
	if err := ApplyTransition(&lead, Transition{To: StatusActive, Trigger: TriggerManual, Caller: ownerCaller(), At: t0}); err != nil {
		panic(err)
	}
	return lead
}
