package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lead_protection_backend/internal/email"
	"lead_protection_backend/internal/events"
	"lead_protection_backend/internal/scheduler"
	"lead_protection_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testNotificationConfig struct{}

func (testNotificationConfig) GetAppBaseURL() string { return "https://crm.example.com" }

type sentNotice struct {
	to     string
	notice email.ProtectionNotice
}

type testSender struct {
	mu   sync.Mutex
	sent []sentNotice
	err  error
}

func (s *testSender) SendProtectionNotice(_ context.Context, to string, notice email.ProtectionNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentNotice{to: to, notice: notice})
	return nil
}

type staticRecipients map[uuid.UUID]string

func (r staticRecipients) NotificationAddress(_ context.Context, userID uuid.UUID) (string, error) {
	return r[userID], nil
}

type testQueue struct {
	payloads []scheduler.ProtectionNoticePayload
}

func (q *testQueue) EnqueueProtectionNotice(_ context.Context, p scheduler.ProtectionNoticePayload) error {
	q.payloads = append(q.payloads, p)
	return nil
}

func notice(owner uuid.UUID) events.ProtectionNotice {
	expires := time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC)
	return events.ProtectionNotice{LeadID: uuid.New(), OwnerUserID: owner, CompanyName: "Acme", ExpiresAt: &expires}
}

func TestHandleSendsNoticePerPhase(t *testing.T) {
	owner := uuid.New()
	tests := []struct {
		name  string
		event func(events.ProtectionNotice) events.Event
		kind  email.NoticeKind
	}{
		{"reminder", func(n events.ProtectionNotice) events.Event {
			return events.LeadReminderDue{BaseEvent: events.NewBaseEvent(), ProtectionNotice: n}
		}, email.NoticeReminder},
		{"grace", func(n events.ProtectionNotice) events.Event {
			return events.LeadGracePeriodStarted{BaseEvent: events.NewBaseEvent(), ProtectionNotice: n}
		}, email.NoticeGracePeriod},
		{"expired", func(n events.ProtectionNotice) events.Event {
			return events.LeadProtectionExpired{BaseEvent: events.NewBaseEvent(), ProtectionNotice: n}
		}, email.NoticeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &testSender{}
			m := New(sender, staticRecipients{owner: "owner@example.com"}, testNotificationConfig{}, logger.Discard())
			n := notice(owner)

			require.NoError(t, m.Handle(context.Background(), tt.event(n)))
			require.Len(t, sender.sent, 1)
			got := sender.sent[0]
			assert.Equal(t, "owner@example.com", got.to)
			assert.Equal(t, tt.kind, got.notice.Kind)
			assert.Equal(t, "https://crm.example.com/leads/"+n.LeadID.String(), got.notice.LeadURL)
		})
	}
}

func TestHandleSkipsOwnersWithoutAddress(t *testing.T) {
	sender := &testSender{}
	m := New(sender, staticRecipients{}, testNotificationConfig{}, logger.Discard())

	err := m.Handle(context.Background(), events.LeadReminderDue{BaseEvent: events.NewBaseEvent(), ProtectionNotice: notice(uuid.New())})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestHandleQueuesWhenSchedulerConfigured(t *testing.T) {
	owner := uuid.New()
	sender := &testSender{}
	queue := &testQueue{}
	m := New(sender, staticRecipients{owner: "owner@example.com"}, testNotificationConfig{}, logger.Discard())
	m.SetNoticeQueue(queue)
	n := notice(owner)

	require.NoError(t, m.Handle(context.Background(), events.LeadProtectionExpired{BaseEvent: events.NewBaseEvent(), ProtectionNotice: n}))
	assert.Empty(t, sender.sent)
	require.Len(t, queue.payloads, 1)
	assert.Equal(t, "expired", queue.payloads[0].Kind)
	assert.Equal(t, n.LeadID.String(), queue.payloads[0].LeadID)

	due := events.ProtectionNoticeDue{BaseEvent: events.NewBaseEvent(), ProtectionNotice: n, Kind: queue.payloads[0].Kind}
	require.NoError(t, m.Handle(context.Background(), due))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, email.NoticeExpired, sender.sent[0].notice.Kind)
}

func TestHandleReturnsSendFailure(t *testing.T) {
	owner := uuid.New()
	sender := &testSender{err: errors.New("smtp send: 421")}
	m := New(sender, staticRecipients{owner: "owner@example.com"}, testNotificationConfig{}, logger.Discard())

	err := m.Handle(context.Background(), events.LeadGracePeriodStarted{BaseEvent: events.NewBaseEvent(), ProtectionNotice: notice(owner)})
	assert.Error(t, err)
}

func TestRegisterHandlersWiresBus(t *testing.T) {
	owner := uuid.New()
	sender := &testSender{}
	bus := events.NewInMemoryBus(logger.Discard())
	m := New(sender, staticRecipients{owner: "owner@example.com"}, testNotificationConfig{}, logger.Discard())
	m.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.LeadReminderDue{BaseEvent: events.NewBaseEvent(), ProtectionNotice: notice(owner)})
	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}
