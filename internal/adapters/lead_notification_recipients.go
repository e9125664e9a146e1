package adapters

import (
	"context"
	"strings"

	"lead_protection_backend/internal/notification"

	"github.com/google/uuid"
)

// LeadSettingsReader is the slice of the leads service that knows where an
// owner wants protection notices delivered.
type LeadSettingsReader interface {
	NotificationAddress(ctx context.Context, userID uuid.UUID) (string, error)
}

// LeadNotificationRecipients adapts the per-user lead settings for the
// notification module.
type LeadNotificationRecipients struct {
	settings LeadSettingsReader
}

// NewLeadNotificationRecipients creates a new recipient resolver adapter.
func NewLeadNotificationRecipients(settings LeadSettingsReader) *LeadNotificationRecipients {
	return &LeadNotificationRecipients{settings: settings}
}

// NotificationAddress returns the owner's notice address, trimmed.
func (a *LeadNotificationRecipients) NotificationAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	addr, err := a.settings.NotificationAddress(ctx, userID)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(addr), nil
}

// Compile-time check.
var _ notification.RecipientResolver = (*LeadNotificationRecipients)(nil)
