package service

import (
	"context"
	"errors"

	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/internal/leads/transport"
	"lead_protection_backend/platform/apperr"
	"lead_protection_backend/platform/sanitize"

	"github.com/google/uuid"
)

// settingsFor returns the user's lead settings, falling back to the policy
// defaults when none are stored. The bool reports the fallback.
func (s *Service) settingsFor(ctx context.Context, userID uuid.UUID) (domain.Settings, bool, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err == nil {
		return settings, false, nil
	}
	if !errors.Is(err, repository.ErrSettingsMissing) {
		return domain.Settings{}, false, err
	}
	return domain.Settings{
		UserID: userID,
		Terms: domain.Terms{
			Months:       s.policy.DefaultMonths,
			ReminderDays: s.policy.DefaultReminderDays,
			GraceDays:    s.policy.DefaultGraceDays,
		},
		Capabilities: domain.ParseCapabilities(s.policy.DefaultCapabilities),
	}, true, nil
}

// GetSettings returns a user's lead settings. Users may read their own;
// admins and managers may read anyone's.
func (s *Service) GetSettings(ctx context.Context, caller domain.Caller, userID uuid.UUID) (transport.LeadSettingsResponse, error) {
	if caller.UserID != userID && !caller.IsAdmin() && !caller.HasRole(domain.RoleManager) {
		return transport.LeadSettingsResponse{}, mapError(domain.ErrAccessDenied)
	}
	settings, isDefault, err := s.settingsFor(ctx, userID)
	if err != nil {
		return transport.LeadSettingsResponse{}, err
	}
	return ToSettingsResponse(settings, isDefault), nil
}

// PutSettings replaces a user's lead settings. Admin only. Existing leads keep
// the terms they were registered with.
func (s *Service) PutSettings(ctx context.Context, caller domain.Caller, userID uuid.UUID, req transport.LeadSettingsRequest) (transport.LeadSettingsResponse, error) {
	if !caller.IsAdmin() {
		return transport.LeadSettingsResponse{}, mapError(domain.ErrAccessDenied)
	}
	if userID == uuid.Nil {
		return transport.LeadSettingsResponse{}, apperr.Validation("user id is required").WithCode("VALIDATION_ERROR")
	}

	terms := domain.Terms{Months: req.ProtectionMonths, ReminderDays: req.ReminderDays, GraceDays: req.GraceDays}
	if err := terms.Validate(s.policy.MonthDays); err != nil {
		return transport.LeadSettingsResponse{}, mapError(err)
	}

	actor := caller.UserID
	saved, err := s.repo.UpsertSettings(ctx, domain.Settings{
		UserID:            userID,
		Terms:             terms,
		Capabilities:      domain.ParseCapabilities(req.Capabilities),
		NotificationEmail: sanitize.Text(req.NotificationEmail),
		UpdatedAt:         s.now(),
		UpdatedBy:         &actor,
	})
	if err != nil {
		return transport.LeadSettingsResponse{}, err
	}
	return ToSettingsResponse(saved, false), nil
}

// NotificationAddress returns where protection notices for userID go. An
// empty result means the user has not configured an address.
func (s *Service) NotificationAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	settings, _, err := s.settingsFor(ctx, userID)
	if err != nil {
		return "", err
	}
	return settings.NotificationEmail, nil
}
