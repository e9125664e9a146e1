// Package notification tells lead owners when their protection decays.
// It listens to lead protection events and either queues the notice on the
// scheduler or, without a queue, delivers it directly.
package notification

import (
	"context"
	"fmt"
	"time"

	"lead_protection_backend/internal/email"
	"lead_protection_backend/internal/events"
	"lead_protection_backend/internal/scheduler"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/metrics"

	"github.com/google/uuid"
)

// RecipientResolver returns the address an owner wants notices sent to.
// An empty address means the owner has not opted in.
type RecipientResolver interface {
	NotificationAddress(ctx context.Context, userID uuid.UUID) (string, error)
}

// Module handles protection events.
type Module struct {
	sender     email.Sender
	recipients RecipientResolver
	queue      scheduler.NoticeScheduler
	cfg        config.NotificationConfig
	log        *logger.Logger
}

// New creates the notification module.
func New(sender email.Sender, recipients RecipientResolver, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if sender == nil {
		sender = email.NoopSender{}
	}
	return &Module{
		sender:     sender,
		recipients: recipients,
		cfg:        cfg,
		log:        log,
	}
}

// SetNoticeQueue makes the module queue notices instead of sending them inline.
func (m *Module) SetNoticeQueue(queue scheduler.NoticeScheduler) {
	m.queue = queue
}

// RegisterHandlers subscribes to the protection events on the bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadReminderDue{}.EventName(), m)
	bus.Subscribe(events.LeadGracePeriodStarted{}.EventName(), m)
	bus.Subscribe(events.LeadProtectionExpired{}.EventName(), m)
	bus.Subscribe(events.ProtectionNoticeDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.LeadReminderDue:
		return m.notify(ctx, email.NoticeReminder, e.ProtectionNotice)
	case events.LeadGracePeriodStarted:
		return m.notify(ctx, email.NoticeGracePeriod, e.ProtectionNotice)
	case events.LeadProtectionExpired:
		return m.notify(ctx, email.NoticeExpired, e.ProtectionNotice)
	case events.ProtectionNoticeDue:
		return m.deliver(ctx, email.NoticeKind(e.Kind), e.ProtectionNotice)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) notify(ctx context.Context, kind email.NoticeKind, notice events.ProtectionNotice) error {
	if m.queue == nil {
		return m.deliver(ctx, kind, notice)
	}

	err := m.queue.EnqueueProtectionNotice(ctx, scheduler.ProtectionNoticePayload{
		Kind:        string(kind),
		LeadID:      notice.LeadID.String(),
		OwnerUserID: notice.OwnerUserID.String(),
		CompanyName: notice.CompanyName,
		ExpiresAt:   notice.ExpiresAt,
	})
	if err != nil {
		m.log.Error("failed to queue protection notice", "leadId", notice.LeadID, "kind", kind, "error", err)
		return fmt.Errorf("queue %s notice: %w", kind, err)
	}
	return nil
}

func (m *Module) deliver(ctx context.Context, kind email.NoticeKind, notice events.ProtectionNotice) error {
	to, err := m.recipients.NotificationAddress(ctx, notice.OwnerUserID)
	if err != nil {
		return fmt.Errorf("resolve notice recipient: %w", err)
	}
	if to == "" {
		m.log.Debug("owner has no notification address", "leadId", notice.LeadID, "ownerUserId", notice.OwnerUserID)
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err = m.sender.SendProtectionNotice(sendCtx, to, email.ProtectionNotice{
		Kind:        kind,
		LeadID:      notice.LeadID.String(),
		CompanyName: notice.CompanyName,
		ExpiresAt:   notice.ExpiresAt,
		LeadURL:     m.leadURL(notice.LeadID),
	})
	metrics.RecordNotification(string(kind), err)
	if err != nil {
		m.log.Error("failed to send protection notice", "leadId", notice.LeadID, "kind", kind, "error", err)
		return err
	}
	m.log.Info("protection notice sent", "leadId", notice.LeadID, "kind", kind)
	return nil
}

func (m *Module) leadURL(leadID uuid.UUID) string {
	if m.cfg == nil || m.cfg.GetAppBaseURL() == "" {
		return ""
	}
	return m.cfg.GetAppBaseURL() + "/leads/" + leadID.String()
}
