package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"lead_protection_backend/internal/leads/domain"
	"lead_protection_backend/internal/leads/repository"
	"lead_protection_backend/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SweepDue pages through every lead whose clock is running and advances the
// ones whose protection phase has moved on. A failure on one lead is logged
// and counted; it never stops the others. Only context cancellation or a
// failed page read ends the run early.
func (s *Service) SweepDue(ctx context.Context) (metrics.SweepStats, error) {
	started := time.Now()
	var scanned, advanced, failed atomic.Int64

	after := uuid.Nil
	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		batch, err := s.repo.ListSweepCandidates(ctx, after, s.sweepBatchSize)
		if err != nil {
			s.log.DatabaseError("list_sweep_candidates", err)
			runErr = err
			break
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.sweepConcurrency)
		for _, lead := range batch {
			g.Go(func() error {
				scanned.Add(1)
				moved, err := s.sweepLead(gctx, lead)
				if err != nil {
					failed.Add(1)
					s.log.Warn("protection sweep failed for lead",
						slog.String("leadId", lead.ID.String()),
						slog.String("error", err.Error()))
					return nil
				}
				if moved {
					advanced.Add(1)
				}
				return nil
			})
		}
		_ = g.Wait()

		after = batch[len(batch)-1].ID
		if len(batch) < s.sweepBatchSize {
			break
		}
	}

	stats := metrics.SweepStats{
		Scanned:  int(scanned.Load()),
		Advanced: int(advanced.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(started),
	}
	metrics.RecordSweep(stats, runErr)
	s.log.SweepResult(stats.Scanned, stats.Advanced, stats.Failed, float64(stats.Duration.Microseconds())/1000)
	return stats, runErr
}

// SweepLead evaluates one lead by id. It reports whether the lead moved.
func (s *Service) SweepLead(ctx context.Context, id uuid.UUID) (bool, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, mapError(err)
	}
	moved, err := s.sweepLead(ctx, lead)
	return moved, mapError(err)
}

// sweepLead advances lead to the phase its clock has reached. On a version
// conflict it re-reads once and tries again.
func (s *Service) sweepLead(ctx context.Context, lead domain.Lead) (bool, error) {
	for attempt := 0; ; attempt++ {
		now := s.now()
		next := lead.Clone()
		entered, err := domain.Advance(&next, s.clock, now)
		if err != nil {
			return false, err
		}
		if len(entered) == 0 {
			return false, nil
		}

		activities := make([]domain.Activity, 0, len(entered))
		prev := lead.Status
		for _, to := range entered {
			activities = append(activities, statusChangeActivity(lead.ID, prev, to, domain.TriggerSweep, uuid.Nil, now))
			prev = to
		}

		updated, err := s.repo.Update(ctx, repository.Mutation{
			Lead:            next,
			ExpectedVersion: lead.Version,
			Activities:      activities,
		})
		if isConflict(err) && attempt == 0 {
			fresh, getErr := s.repo.GetByID(ctx, lead.ID)
			if getErr != nil {
				return false, getErr
			}
			lead = fresh
			continue
		}
		if err != nil {
			return false, err
		}

		s.publishTransitions(ctx, updated, lead.Status, entered, domain.TriggerSweep, nil, now)
		return true, nil
	}
}
