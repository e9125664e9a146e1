package transport

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs
type CreateLeadRequest struct {
	CompanyName     string      `json:"companyName" validate:"required,min=1,max=200"`
	ContactPerson   string      `json:"contactPerson,omitempty" validate:"max=200"`
	Email           string      `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone           string      `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Street          string      `json:"street,omitempty" validate:"max=200"`
	PostalCode      string      `json:"postalCode,omitempty" validate:"max=20"`
	City            string      `json:"city,omitempty" validate:"max=100"`
	Notes           string      `json:"notes,omitempty" validate:"max=5000"`
	TerritoryID     *uuid.UUID  `json:"territoryId,omitempty"`
	CollaboratorIDs []uuid.UUID `json:"collaboratorIds,omitempty" validate:"max=50"`
}

// UpdateLeadRequest is a partial update. Ownership never changes here; see
// TransferOwnershipRequest.
type UpdateLeadRequest struct {
	Status              *string     `json:"status,omitempty" validate:"omitempty,oneof=REGISTERED ACTIVE REMINDER GRACE_PERIOD EXPIRED DELETED"`
	StopClock           *bool       `json:"stopClock,omitempty"`
	StopReason          *string     `json:"stopReason,omitempty" validate:"omitempty,max=500"`
	CompanyName         *string     `json:"companyName,omitempty" validate:"omitempty,min=1,max=200"`
	ContactPerson       *string     `json:"contactPerson,omitempty" validate:"omitempty,max=200"`
	Email               *string     `json:"email,omitempty" validate:"omitempty,email,max=254"`
	Phone               *string     `json:"phone,omitempty" validate:"omitempty,min=5,max=20"`
	Street              *string     `json:"street,omitempty" validate:"omitempty,max=200"`
	PostalCode          *string     `json:"postalCode,omitempty" validate:"omitempty,max=20"`
	City                *string     `json:"city,omitempty" validate:"omitempty,max=100"`
	Notes               *string     `json:"notes,omitempty" validate:"omitempty,max=5000"`
	AddCollaborators    []uuid.UUID `json:"addCollaborators,omitempty" validate:"max=50"`
	RemoveCollaborators []uuid.UUID `json:"removeCollaborators,omitempty" validate:"max=50"`
}

// HasContactChanges reports whether any PII field is part of the patch.
func (r UpdateLeadRequest) HasContactChanges() bool {
	return r.CompanyName != nil || r.ContactPerson != nil || r.Email != nil || r.Phone != nil ||
		r.Street != nil || r.PostalCode != nil || r.City != nil || r.Notes != nil
}

type CreateActivityRequest struct {
	Type        string `json:"type" validate:"required,oneof=PHONE_CALL EMAIL MEETING SITE_VISIT NOTE"`
	Description string `json:"description" validate:"max=5000"`
}

// ErasureRequest carries the documented reason for a GDPR erasure.
type ErasureRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

type TransferOwnershipRequest struct {
	NewOwnerID uuid.UUID `json:"newOwnerId" validate:"required"`
}

type LeadSettingsRequest struct {
	ProtectionMonths  int      `json:"protectionMonths" validate:"required,min=1,max=60"`
	ReminderDays      int      `json:"reminderDays" validate:"required,min=2,max=1800"`
	GraceDays         int      `json:"graceDays" validate:"required,min=1,max=1800"`
	Capabilities      []string `json:"capabilities" validate:"dive,oneof=STOP_CLOCK TRANSFER_OWNERSHIP"`
	NotificationEmail string   `json:"notificationEmail,omitempty" validate:"omitempty,email,max=254"`
}

type ListLeadsRequest struct {
	Status         string `form:"status" validate:"omitempty,oneof=REGISTERED ACTIVE REMINDER GRACE_PERIOD EXPIRED DELETED"`
	IncludeDeleted bool   `form:"includeDeleted"`
	Page           int    `form:"page" validate:"min=1"`
	PageSize       int    `form:"pageSize" validate:"min=1,max=100"`
}

type ListActivitiesRequest struct {
	Page     int `form:"page" validate:"min=1"`
	PageSize int `form:"pageSize" validate:"min=1,max=100"`
}

// Response DTOs
type ContactResponse struct {
	CompanyName   string `json:"companyName"`
	ContactPerson string `json:"contactPerson,omitempty"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Street        string `json:"street,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	City          string `json:"city,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type TermsResponse struct {
	Months       int `json:"protectionMonths"`
	ReminderDays int `json:"protectionDays60"`
	GraceDays    int `json:"protectionDays10"`
}

type LeadResponse struct {
	ID                 uuid.UUID       `json:"id"`
	Version            int64           `json:"version"`
	Status             string          `json:"status"`
	OwnerUserID        uuid.UUID       `json:"ownerUserId"`
	CollaboratorIDs    []uuid.UUID     `json:"collaboratorUserIds"`
	Contact            ContactResponse `json:"contact"`
	Terms              TermsResponse   `json:"terms"`
	TerritoryID        *uuid.UUID      `json:"territoryId,omitempty"`
	RegisteredAt       time.Time       `json:"registeredAt"`
	LastActivityAt     *time.Time      `json:"lastActivityAt,omitempty"`
	ReminderSentAt     *time.Time      `json:"reminderSentAt,omitempty"`
	GracePeriodStartAt *time.Time      `json:"gracePeriodStartAt,omitempty"`
	ExpiredAt          *time.Time      `json:"expiredAt,omitempty"`
	ClockStoppedAt     *time.Time      `json:"clockStoppedAt,omitempty"`
	StopReason         string          `json:"stopReason,omitempty"`
	StopApprovedBy     *uuid.UUID      `json:"stopApprovedBy,omitempty"`
	PausedSeconds      int64           `json:"pausedSeconds"`
	ErasedAt           *time.Time      `json:"erasedAt,omitempty"`
	ContactBlocked     bool            `json:"contactBlocked"`
	ConsentRevokedAt   *time.Time      `json:"consentRevokedAt,omitempty"`
	PseudonymizedAt    *time.Time      `json:"pseudonymizedAt,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

type LeadListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type ProtectionResponse struct {
	LeadID         uuid.UUID  `json:"leadId"`
	Status         string     `json:"status"`
	DueStatus      string     `json:"dueStatus"`
	ClockStopped   bool       `json:"clockStopped"`
	StoppedAt      *time.Time `json:"stoppedAt,omitempty"`
	StopReason     string     `json:"stopReason,omitempty"`
	StopApprovedBy *uuid.UUID `json:"stopApprovedBy,omitempty"`
	ElapsedDays    int        `json:"elapsedDays"`
	RemainingDays  int        `json:"remainingDays"`
	NextTransition string     `json:"nextTransition,omitempty"`
	DaysUntilNext  int        `json:"daysUntilNext"`
	ReminderAt     *time.Time `json:"reminderAt,omitempty"`
	GracePeriodAt  *time.Time `json:"gracePeriodAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

type ActivityResponse struct {
	ID          uuid.UUID      `json:"id"`
	LeadID      uuid.UUID      `json:"leadId"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	ActorID     *uuid.UUID     `json:"actorId,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt"`
	Meaningful  bool           `json:"meaningful"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	PageSize   int                `json:"pageSize"`
	TotalPages int                `json:"totalPages"`
}

// RecordActivityResponse returns the new entry together with the lead it
// touched, so clients see a reactivation without a second round trip.
type RecordActivityResponse struct {
	Activity   ActivityResponse `json:"activity"`
	Lead       LeadResponse     `json:"lead"`
	ClockReset bool             `json:"clockReset"`
}

type ErasureResponse struct {
	LeadID       uuid.UUID `json:"leadId"`
	Status       string    `json:"status"`
	IdentityHash string    `json:"identityHash"`
	ErasedAt     time.Time `json:"erasedAt"`
}

type ErasureLogEntryResponse struct {
	ID             uuid.UUID `json:"id"`
	LeadID         uuid.UUID `json:"leadId"`
	IdentityHash   string    `json:"identityHash"`
	PreviousStatus string    `json:"previousStatus"`
	Reason         string    `json:"reason"`
	ErasedBy       uuid.UUID `json:"erasedBy"`
	ErasedAt       time.Time `json:"erasedAt"`
}

type ContactAllowedResponse struct {
	LeadID           uuid.UUID  `json:"leadId"`
	Allowed          bool       `json:"allowed"`
	ConsentRevokedAt *time.Time `json:"consentRevokedAt,omitempty"`
	Erased           bool       `json:"erased"`
}

type LeadSettingsResponse struct {
	UserID            uuid.UUID  `json:"userId"`
	ProtectionMonths  int        `json:"protectionMonths"`
	ReminderDays      int        `json:"reminderDays"`
	GraceDays         int        `json:"graceDays"`
	Capabilities      []string   `json:"capabilities"`
	NotificationEmail string     `json:"notificationEmail,omitempty"`
	IsDefault         bool       `json:"isDefault"`
	UpdatedAt         *time.Time `json:"updatedAt,omitempty"`
}
