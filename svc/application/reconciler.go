package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stageroute/castflow/pkg/logger"
)

// ReconcilerConfig controls the background pass that finishes dispatches
// left behind by callers that gave up after their state change committed.
type ReconcilerConfig struct {
	Schedule   string        `env:"RECONCILE_SCHEDULE" envDefault:"@every 1m"`
	StaleAfter time.Duration `env:"RECONCILE_STALE_AFTER" envDefault:"2m"`
	BatchSize  int           `env:"RECONCILE_BATCH_SIZE" envDefault:"100"`
}

// ReconcileStats summarises one pass.
type ReconcileStats struct {
	Resumed   int
	Committed int
	Abandoned int
	Failed    int
}

// Reconciler resumes unfinished dispatches on a cron schedule.
type Reconciler struct {
	svc    *Service
	cfg    ReconcilerConfig
	cron   *cron.Cron
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

func NewReconciler(svc *Service, cfg ReconcilerConfig) *Reconciler {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1m"
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Reconciler{
		svc:    svc,
		cfg:    cfg,
		logger: svc.logger.With(logger.Component("reconciler")),
		now:    svc.engine.now,
	}
}

// Start schedules RunOnce. Overlapping runs are skipped.
func (r *Reconciler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.cfg.Schedule, func() {
		stats, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.LogAttrs(ctx, slog.LevelError, "reconcile pass failed", logger.Error(err))
			return
		}
		if stats != (ReconcileStats{}) {
			r.logger.LogAttrs(ctx, slog.LevelInfo, "reconcile pass finished",
				logger.Count("resumed", stats.Resumed),
				logger.Count("committed", stats.Committed),
				logger.Count("abandoned", stats.Abandoned),
				logger.Count("failed", stats.Failed),
			)
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciler %q: %w", r.cfg.Schedule, err)
	}

	r.mu.Lock()
	r.cron = c
	r.running = true
	r.mu.Unlock()

	c.Start()
	return nil
}

// Stop halts scheduling and waits for a running pass to finish or ctx to end.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	c, running := r.cron, r.running
	r.running = false
	r.mu.Unlock()
	if !running {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce handles every dispatch last touched before the stale cutoff.
// Committed records resume. Prepared records whose state change did land
// are committed and resumed; the rest lost their race and are abandoned.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats
	pending, err := r.svc.journal.Unfinished(ctx, r.now().Add(-r.cfg.StaleAfter), r.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("list unfinished dispatches: %w", err)
	}

	m := r.svc.engine.metrics
	for _, disp := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if disp.Status == DispatchPrepared {
			app, err := r.svc.repo.Get(ctx, disp.ApplicationID)
			if err != nil {
				stats.Failed++
				r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to load application for prepared dispatch",
					logger.ApplicationID(disp.ApplicationID), logger.Error(err))
				continue
			}
			if app.Revision != disp.Revision || app.State != disp.Target {
				if err := r.svc.journal.Abandon(ctx, disp.Key, disp.Attempt); err != nil {
					stats.Failed++
					continue
				}
				if app.Revision > disp.Revision {
					// its state change may have landed before a later one; effects are not replayed
					r.logger.LogAttrs(ctx, slog.LevelWarn, "abandoned dispatch whose revision was passed",
						logger.ApplicationID(disp.ApplicationID),
						slog.String("dispatch_key", disp.Key),
						logger.State(string(disp.Target)),
						logger.Revision(app.Revision),
					)
				}
				stats.Abandoned++
				m.reconcile("abandoned")
				continue
			}
			disp.Status = DispatchCommitted
			if err := r.svc.journal.Commit(ctx, disp); err != nil {
				stats.Failed++
				continue
			}
			stats.Committed++
			m.reconcile("committed")
		}

		res, err := r.svc.engine.resume(ctx, disp)
		if err != nil && !IsSideEffectError(err) {
			stats.Failed++
			r.logger.LogAttrs(ctx, slog.LevelWarn, "failed to resume dispatch",
				slog.String("dispatch_key", disp.Key), logger.Error(err))
			continue
		}
		if res.Deferred {
			stats.Failed++
			continue
		}
		stats.Resumed++
		m.reconcile("resumed")
	}
	return stats, nil
}
