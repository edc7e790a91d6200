// Package sweeper periodically forgets compute resource nodes that
// stopped polling.
package sweeper

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/protocaas/protocaas/internal/metrics"
	"github.com/protocaas/protocaas/internal/models"
	"github.com/protocaas/protocaas/pkg/log"
	"github.com/robfig/cron"
)

// Pruner deletes liveness records last active before cutoff.
type Pruner interface {
	PruneNodes(ctx context.Context, cutoff float64) (int64, error)
}

type Sweeper struct {
	pruner     Pruner
	schedule   cron.Schedule
	staleAfter time.Duration
	now        func() time.Time
}

// New parses a five-field cron expression or a descriptor such as
// "@every 1h".
func New(pruner Pruner, expr string, staleAfter time.Duration) (*Sweeper, error) {
	if staleAfter <= 0 {
		return nil, errors.Errorf("stale-after must be positive, got %s", staleAfter)
	}

	parser := cron.NewParser(
		cron.Minute |
			cron.Hour |
			cron.Dom |
			cron.Month |
			cron.Dow |
			cron.Descriptor,
	)

	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse node sweep schedule %q", expr)
	}

	return &Sweeper{pruner: pruner, schedule: sched, staleAfter: staleAfter, now: time.Now}, nil
}

// Run sweeps on every tick until ctx is cancelled. Failed sweeps are
// logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	log.Info("node sweeper started", "stale_after", s.staleAfter)

	for {
		select {
		case <-time.After(time.Until(s.schedule.Next(s.now()))):
			if _, err := s.Sweep(ctx); err != nil {
				log.Error("node sweep failure", "error", err)
			}
		case <-ctx.Done():
			log.Info("node sweeper stopped")
			return
		}
	}
}

// Sweep prunes nodes idle for longer than the stale-after window.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.staleAfter)

	n, err := s.pruner.PruneNodes(ctx, models.Timestamp(cutoff))
	if err != nil {
		return 0, err
	}

	metrics.NodesPrunedTotal.Add(float64(n))
	if n > 0 {
		log.Info("pruned stale compute resource nodes", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
