package service

import (
	"slices"
	"time"

	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/transport"

	"github.com/google/uuid"
)

// ToLeadResponse maps a domain lead to its API representation.
func ToLeadResponse(lead domain.Lead) transport.LeadResponse {
	collaborators := slices.Clone(lead.CollaboratorIDs)
	if collaborators == nil {
		collaborators = []uuid.UUID{}
	}
	return transport.LeadResponse{
		ID:              lead.ID,
		Version:         lead.Version,
		Status:          string(lead.Status),
		OwnerUserID:     lead.OwnerUserID,
		CollaboratorIDs: collaborators,
		Contact: transport.ContactResponse{
			CompanyName:   lead.Contact.CompanyName,
			ContactPerson: lead.Contact.ContactPerson,
			Email:         lead.Contact.Email,
			Phone:         lead.Contact.Phone,
			Street:        lead.Contact.Street,
			PostalCode:    lead.Contact.PostalCode,
			City:          lead.Contact.City,
			Notes:         lead.Contact.Notes,
		},
		Terms: transport.TermsResponse{
			Months:       lead.Terms.Months,
			ReminderDays: lead.Terms.ReminderDays,
			GraceDays:    lead.Terms.GraceDays,
		},
		TerritoryID:        lead.TerritoryID,
		RegisteredAt:       lead.RegisteredAt,
		LastActivityAt:     lead.LastActivityAt,
		ReminderSentAt:     lead.ReminderSentAt,
		GracePeriodStartAt: lead.GracePeriodStartAt,
		ExpiredAt:          lead.ExpiredAt,
		ClockStoppedAt:     lead.ClockStoppedAt,
		StopReason:         lead.StopReason,
		StopApprovedBy:     lead.StopApprovedBy,
		PausedSeconds:      int64(lead.PausedTotal / time.Second),
		ErasedAt:           lead.ErasedAt,
		ContactBlocked:     lead.ContactBlocked,
		ConsentRevokedAt:   lead.ConsentRevokedAt,
		PseudonymizedAt:    lead.PseudonymizedAt,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
}

func ToProtectionResponse(lead domain.Lead, p domain.Projection) transport.ProtectionResponse {
	resp := transport.ProtectionResponse{
		LeadID:         lead.ID,
		Status:         string(p.Status),
		DueStatus:      string(p.Target),
		ClockStopped:   p.ClockStopped,
		StoppedAt:      lead.ClockStoppedAt,
		StopReason:     lead.StopReason,
		StopApprovedBy: lead.StopApprovedBy,
		ElapsedDays:    int(p.Elapsed / (24 * time.Hour)),
		RemainingDays:  p.RemainingDays(),
		DaysUntilNext:  p.DaysUntilNext(),
		ReminderAt:     p.ReminderAt,
		GracePeriodAt:  p.GraceAt,
		ExpiresAt:      p.ExpiresAt,
	}
	if p.NextTransition != "" {
		resp.NextTransition = string(p.NextTransition)
	}
	return resp
}

func ToActivityResponse(a domain.Activity) transport.ActivityResponse {
	return transport.ActivityResponse{
		ID:          a.ID,
		LeadID:      a.LeadID,
		Type:        string(a.Type),
		Description: a.Description,
		ActorID:     a.ActorID,
		OccurredAt:  a.OccurredAt,
		Meaningful:  a.Meaningful,
		Metadata:    a.Metadata,
	}
}

func ToErasureLogEntry(r domain.ErasureRecord) transport.ErasureLogEntryResponse {
	return transport.ErasureLogEntryResponse{
		ID:             r.ID,
		LeadID:         r.LeadID,
		IdentityHash:   r.IdentityHash,
		PreviousStatus: string(r.PreviousStatus),
		Reason:         r.Reason,
		ErasedBy:       r.ErasedBy,
		ErasedAt:       r.ErasedAt,
	}
}

func ToSettingsResponse(s domain.Settings, isDefault bool) transport.LeadSettingsResponse {
	caps := make([]string, 0, len(s.Capabilities))
	for _, c := range s.Capabilities {
		caps = append(caps, string(c))
	}
	resp := transport.LeadSettingsResponse{
		UserID:            s.UserID,
		ProtectionMonths:  s.Terms.Months,
		ReminderDays:      s.Terms.ReminderDays,
		GraceDays:         s.Terms.GraceDays,
		Capabilities:      caps,
		NotificationEmail: s.NotificationEmail,
		IsDefault:         isDefault,
	}
	if !s.UpdatedAt.IsZero() {
		updated := s.UpdatedAt
		resp.UpdatedAt = &updated
	}
	return resp
}
