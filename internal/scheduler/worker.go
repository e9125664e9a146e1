package scheduler

import (
	"context"
	"fmt"

	"lead_protection_backend/internal/events"
	"lead_protection_backend/platform/config"
	"lead_protection_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskProtectionNotice, w.handleProtectionNotice)

	return w, nil
}

// Run processes tasks until ctx ends, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		w.log.Error("scheduler worker failed to start", "error", err)
		return err
	}
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

// handleProtectionNotice hands the notice to the bus synchronously so a
// delivery failure makes asynq retry the task.
func (w *Worker) handleProtectionNotice(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	event, err := noticeEvent(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return w.bus.PublishSync(ctx, event)
}

func noticeEvent(task *asynq.Task) (events.ProtectionNoticeDue, error) {
	payload, err := ParseProtectionNoticePayload(task)
	if err != nil {
		return events.ProtectionNoticeDue{}, err
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return events.ProtectionNoticeDue{}, err
	}
	ownerID, err := uuid.Parse(payload.OwnerUserID)
	if err != nil {
		return events.ProtectionNoticeDue{}, err
	}

	return events.ProtectionNoticeDue{
		BaseEvent: events.NewBaseEvent(),
		ProtectionNotice: events.ProtectionNotice{
			LeadID:      leadID,
			OwnerUserID: ownerID,
			CompanyName: payload.CompanyName,
			ExpiresAt:   payload.ExpiresAt,
		},
		Kind: payload.Kind,
	}, nil
}
