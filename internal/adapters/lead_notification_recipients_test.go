package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type settingsFunc func(ctx context.Context, userID uuid.UUID) (string, error)

func (f settingsFunc) NotificationAddress(ctx context.Context, userID uuid.UUID) (string, error) {
	return f(ctx, userID)
}

func TestLeadNotificationRecipients(t *testing.T) {
	a := NewLeadNotificationRecipients(settingsFunc(func(context.Context, uuid.UUID) (string, error) {
		return "  owner@example.com\n", nil
	}))
	got, err := a.NotificationAddress(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "owner@example.com" {
		t.Fatalf("address = %q", got)
	}

	boom := errors.New("settings unavailable")
	failing := NewLeadNotificationRecipients(settingsFunc(func(context.Context, uuid.UUID) (string, error) {
		return "", boom
	}))
	if _, err := failing.NotificationAddress(context.Background(), uuid.New()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
}
