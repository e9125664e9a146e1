package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ActivityType classifies an entry in a lead's activity log.
type ActivityType string

const (
	ActivityPhoneCall ActivityType = "PHONE_CALL"
	ActivityEmail     ActivityType = "EMAIL"
	ActivityMeeting   ActivityType = "MEETING"
	ActivitySiteVisit ActivityType = "SITE_VISIT"
	ActivityNote      ActivityType = "NOTE"

	// System entries written by the engine itself.
	ActivityStatusChange         ActivityType = "STATUS_CHANGE"
	ActivityClockStopped         ActivityType = "CLOCK_STOPPED"
	ActivityClockResumed         ActivityType = "CLOCK_RESUMED"
	ActivityLeadAssigned         ActivityType = "LEAD_ASSIGNED"
	ActivityOwnershipTransferred ActivityType = "OWNERSHIP_TRANSFERRED"
	ActivityLeadErased           ActivityType = "LEAD_ERASED"
	ActivityConsentRevoked       ActivityType = "CONSENT_REVOKED"
	ActivityLeadPseudonymized    ActivityType = "LEAD_PSEUDONYMIZED"
)

var userActivityTypes = []ActivityType{
	ActivityPhoneCall, ActivityEmail, ActivityMeeting, ActivitySiteVisit, ActivityNote,
}

var ErrSystemActivityType = errors.New("activity type is reserved for system entries")

// ParseActivityType accepts the types a user may log directly.
func ParseActivityType(value string) (ActivityType, error) {
	candidate := ActivityType(strings.ToUpper(strings.TrimSpace(value)))
	for _, t := range userActivityTypes {
		if t == candidate {
			return t, nil
		}
	}
	switch candidate {
	case ActivityStatusChange, ActivityClockStopped, ActivityClockResumed,
		ActivityLeadAssigned, ActivityOwnershipTransferred, ActivityLeadErased,
		ActivityConsentRevoked, ActivityLeadPseudonymized:
		return "", ErrSystemActivityType
	}
	return "", fmt.Errorf("unknown activity type %q", value)
}

// Activity is an immutable log entry.
type Activity struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Type        ActivityType
	Description string
	ActorID     *uuid.UUID
	OccurredAt  time.Time
	Meaningful  bool
	Metadata    map[string]any
}

// NewSystemActivity builds an engine-authored log entry.
func NewSystemActivity(leadID uuid.UUID, typ ActivityType, description string, actor uuid.UUID, at time.Time, metadata map[string]any) Activity {
	var actorID *uuid.UUID
	if actor != uuid.Nil {
		actorID = &actor
	}
	return Activity{
		ID:          uuid.New(),
		LeadID:      leadID,
		Type:        typ,
		Description: description,
		ActorID:     actorID,
		OccurredAt:  at,
		Metadata:    metadata,
	}
}

// Classifier decides which activity types count as meaningful contact.
type Classifier struct {
	meaningful     map[ActivityType]struct{}
	minDescription int
}

// NewClassifier builds a classifier from configured type names. Unknown and
// system types are ignored; NOTE may be promoted explicitly.
func NewClassifier(types []string, minDescription int) Classifier {
	c := Classifier{meaningful: make(map[ActivityType]struct{}), minDescription: minDescription}
	for _, raw := range types {
		t, err := ParseActivityType(raw)
		if err != nil {
			continue
		}
		c.meaningful[t] = struct{}{}
	}
	return c
}

// DefaultClassifier treats calls, e-mails, meetings and site visits as meaningful.
func DefaultClassifier() Classifier {
	return NewClassifier([]string{"PHONE_CALL", "EMAIL", "MEETING", "SITE_VISIT"}, 0)
}

// IsMeaningful reports whether an activity resets the protection clock.
func (c Classifier) IsMeaningful(t ActivityType, description string) bool {
	if _, ok := c.meaningful[t]; !ok {
		return false
	}
	return len([]rune(strings.TrimSpace(description))) >= c.minDescription
}

// ActivityOutcome reports what recording an activity did to the lead.
type ActivityOutcome struct {
	Activity   Activity
	From       Status
	ClockReset bool
	Transition bool
}

// RecordActivity appends an activity on behalf of caller. Meaningful activity
// re-anchors the clock; on a decaying lead it reactivates to ACTIVE, and on a
// REGISTERED lead the owner or an admin activates it. EXPIRED leads accept the
// entry without any clock effect. A lead whose contact is blocked refuses
// meaningful contact but still takes notes.
func RecordActivity(lead *Lead, caller Caller, typ ActivityType, description string, classifier Classifier, now time.Time) (ActivityOutcome, error) {
	if !CanAccess(*lead, caller) {
		return ActivityOutcome{}, ErrAccessDenied
	}
	if lead.Status == StatusDeleted {
		return ActivityOutcome{}, ErrLeadDeleted
	}

	actor := caller.UserID
	out := ActivityOutcome{
		From: lead.Status,
		Activity: Activity{
			ID:          uuid.New(),
			LeadID:      lead.ID,
			Type:        typ,
			Description: strings.TrimSpace(description),
			ActorID:     &actor,
			OccurredAt:  now,
			Meaningful:  classifier.IsMeaningful(typ, description),
		},
	}
	if out.Activity.Meaningful && !lead.ContactAllowed() {
		return ActivityOutcome{}, ErrContactBlocked
	}
	if !out.Activity.Meaningful || lead.Status == StatusExpired {
		return out, nil
	}

	switch lead.Status {
	case StatusReminder, StatusGracePeriod:
		if err := ApplyTransition(lead, Transition{To: StatusActive, Trigger: TriggerActivity, Caller: caller, At: now}); err != nil {
			return ActivityOutcome{}, err
		}
		out.Transition = true
	case StatusRegistered:
		if CanMutate(*lead, caller) {
			if err := ApplyTransition(lead, Transition{To: StatusActive, Trigger: TriggerActivity, Caller: caller, At: now}); err != nil {
				return ActivityOutcome{}, err
			}
			out.Transition = true
		} else {
			reanchor(lead, now)
		}
	default:
		reanchor(lead, now)
	}
	lead.touch(&actor, now)
	out.ClockReset = true
	return out, nil
}
