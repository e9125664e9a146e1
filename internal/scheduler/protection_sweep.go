package scheduler

import (
	"context"
	"time"

	"lead_protection_backend/platform/logger"
	"lead_protection_backend/platform/metrics"
)

const defaultProtectionSweepInterval = 15 * time.Minute

// Sweeper advances every lead whose protection phase is due and pseudonymises
// leads that stayed EXPIRED past the retention window.
type Sweeper interface {
	SweepDue(ctx context.Context) (metrics.SweepStats, error)
	PseudonymizeExpired(ctx context.Context) (int, error)
}

// Locker hands out the single sweep lease across scheduler replicas.
type Locker interface {
	TryAcquire(ctx context.Context) (func(context.Context) error, error)
}

// ProtectionSweep periodically runs the lead protection sweep.
type ProtectionSweep struct {
	sweeper  Sweeper
	lock     Locker
	log      *logger.Logger
	interval time.Duration
}

// NewProtectionSweep creates the sweep job. A nil lock runs every tick
// unconditionally, which is only safe with a single scheduler replica.
func NewProtectionSweep(sweeper Sweeper, lock Locker, log *logger.Logger, interval time.Duration) *ProtectionSweep {
	if interval <= 0 {
		interval = defaultProtectionSweepInterval
	}
	return &ProtectionSweep{
		sweeper:  sweeper,
		lock:     lock,
		log:      log,
		interval: interval,
	}
}

func (p *ProtectionSweep) Run(ctx context.Context) {
	if p == nil || p.sweeper == nil {
		return
	}

	p.RunOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps, then pseudonymises, if this replica holds the lease. It
// reports whether a sweep ran.
func (p *ProtectionSweep) RunOnce(ctx context.Context) bool {
	if p.lock != nil {
		release, err := p.lock.TryAcquire(ctx)
		if err != nil {
			p.log.Warn("protection sweep lock failed", "error", err)
			metrics.RecordSweepSkipped()
			return false
		}
		if release == nil {
			p.log.Debug("protection sweep skipped, lock held elsewhere")
			metrics.RecordSweepSkipped()
			return false
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				p.log.Warn("protection sweep lock release failed", "error", err)
			}
		}()
	}

	if _, err := p.sweeper.SweepDue(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("protection sweep ended early", "error", err)
	}
	if ctx.Err() != nil {
		return true
	}
	if _, err := p.sweeper.PseudonymizeExpired(ctx); err != nil && ctx.Err() == nil {
		p.log.Warn("pseudonymization ended early", "error", err)
	}
	return true
}
