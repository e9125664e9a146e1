package email

import (
	"context"
	"time"
)

// NoticeKind names the protection phase an owner is told about.
type NoticeKind string

const (
	NoticeReminder    NoticeKind = "reminder"
	NoticeGracePeriod NoticeKind = "grace_period"
	NoticeExpired     NoticeKind = "expired"
)

// ProtectionNotice is the content of one owner notification.
type ProtectionNotice struct {
	Kind        NoticeKind
	LeadID      string
	CompanyName string
	ExpiresAt   *time.Time
	LeadURL     string
}

type Sender interface {
	SendProtectionNotice(ctx context.Context, toEmail string, notice ProtectionNotice) error
}

type NoopSender struct{}

func (NoopSender) SendProtectionNotice(context.Context, string, ProtectionNotice) error {
	return nil
}
