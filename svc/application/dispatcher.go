package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/idempotency"
	"github.com/stageroute/castflow/pkg/logger"
)

// effect is one action bound to entering a state. Critical effects roll the
// transition back when they fail; the rest are best effort.
type effect struct {
	name       string
	critical   bool
	applies    func(Dispatch) bool
	run        func(ctx context.Context, ec *effectContext) error
	compensate func(ctx context.Context, ec *effectContext) error
}

// effectContext carries one dispatch and caches collaborator lookups across its effects.
type effectContext struct {
	dispatch  Dispatch
	app       Application
	directory Directory

	job       *Job
	candidate *User
}

func (ec *effectContext) Job(ctx context.Context) (Job, error) {
	if ec.job == nil {
		job, err := ec.directory.Job(ctx, ec.app.JobID)
		if err != nil {
			return Job{}, fmt.Errorf("load job %s: %w", ec.app.JobID, err)
		}
		ec.job = &job
	}
	return *ec.job, nil
}

func (ec *effectContext) Candidate(ctx context.Context) (User, error) {
	if ec.candidate == nil {
		u, err := ec.directory.User(ctx, ec.app.UserID)
		if err != nil {
			return User{}, fmt.Errorf("load candidate %s: %w", ec.app.UserID, err)
		}
		ec.candidate = &u
	}
	return *ec.candidate, nil
}

// effectFailure is returned by Run when a critical effect failed and the
// effects before it were compensated.
type effectFailure struct {
	effect string
	err    error
}

func (f *effectFailure) Error() string { return fmt.Sprintf("effect %s: %v", f.effect, f.err) }
func (f *effectFailure) Unwrap() error { return f.err }

// Dispatcher executes the effects bound to a target state exactly once per dispatch key.
type Dispatcher struct {
	repo      Repository
	invites   InviteStore
	ledger    Ledger
	notifier  Notifier
	messenger Messenger
	directory Directory
	activity  ActivityRecorder
	journal   DispatchJournal
	locker    idempotency.Locker
	lockTTL   time.Duration
	bindings  map[State][]effect
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

func newDispatcher(c Collaborators, cfg *options) *Dispatcher {
	d := &Dispatcher{
		repo:      c.Repository,
		invites:   c.Invites,
		ledger:    c.Ledger,
		notifier:  c.Notifier,
		messenger: c.Messenger,
		directory: c.Directory,
		activity:  c.Activity,
		journal:   c.Journal,
		locker:    c.Locker,
		lockTTL:   cfg.lockTTL,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		now:       cfg.now,
	}
	d.bindings = d.effectBindings()
	return d
}

// Validate checks the payload and preconditions for entering target before
// anything is written.
func (d *Dispatcher) Validate(ctx context.Context, app Application, disp Dispatch) error {
	switch disp.Target {
	case StateInvited:
		return newValidationError(validateInvite(disp.Payload))
	case StateRejected:
		return newValidationError(validateRejection(disp.Payload))
	case StateApplied:
		if !disp.ChargeTokens {
			return nil
		}
		return d.checkBalance(ctx, app.JobID, app.UserID)
	}
	return nil
}

func (d *Dispatcher) checkBalance(ctx context.Context, jobID, userID uuid.UUID) error {
	job, err := d.directory.Job(ctx, jobID)
	if err != nil {
		return err
	}
	if job.RequiredTokens <= 0 {
		return nil
	}
	balance, err := d.ledger.Balance(ctx, userID)
	if err != nil {
		return fmt.Errorf("read token balance: %w", err)
	}
	if balance < job.RequiredTokens {
		return insufficientTokens()
	}
	return nil
}

// Run executes disp's effects. Effects already recorded as done are skipped, so
// Run may be called again for the same dispatch after an interruption. A
// failed critical effect compensates the critical effects before it and
// yields an *effectFailure; other errors leave the dispatch unfinished.
func (d *Dispatcher) Run(ctx context.Context, disp Dispatch) error {
	lockKey := "dispatch:" + disp.Key
	ok, err := d.locker.Acquire(ctx, lockKey, d.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return ErrDispatchInProgress
	}
	defer func() {
		if err := d.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "failed to release dispatch lock",
				slog.String("dispatch_key", disp.Key), logger.Error(err))
		}
	}()

	// the journal copy is authoritative for which effects already ran
	if stored, err := d.journal.Get(ctx, disp.Key); err == nil {
		disp.Done = stored.Done
	}

	app, err := d.repo.Get(ctx, disp.ApplicationID)
	if err != nil {
		return fmt.Errorf("load application for dispatch: %w", err)
	}

	started := d.now()
	ec := &effectContext{dispatch: disp, app: app, directory: d.directory}
	var compensable []effect

	for _, eff := range d.bindings[disp.Target] {
		if eff.applies != nil && !eff.applies(disp) {
			continue
		}
		if disp.IsDone(eff.name) {
			if eff.compensate != nil {
				compensable = append(compensable, eff)
			}
			continue
		}

		runErr := eff.run(ctx, ec)
		switch {
		case runErr == nil:
			d.metrics.effect(eff.name, "ok")
			if eff.compensate != nil {
				compensable = append(compensable, eff)
			}
		case eff.critical:
			d.metrics.effect(eff.name, "failed")
			d.logger.LogAttrs(ctx, slog.LevelError, "critical side effect failed",
				logger.ApplicationID(app.ID),
				logger.Effect(eff.name),
				logger.State(string(disp.Target)),
				logger.Error(runErr),
			)
			d.compensate(ctx, ec, compensable)
			return &effectFailure{effect: eff.name, err: runErr}
		default:
			d.metrics.effect(eff.name, "skipped")
			d.logger.LogAttrs(ctx, slog.LevelWarn, "best-effort side effect failed",
				logger.ApplicationID(app.ID),
				logger.Effect(eff.name),
				logger.Error(runErr),
			)
		}

		if err := d.journal.MarkEffect(ctx, disp.Key, eff.name); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelWarn, "failed to journal side effect",
				logger.ApplicationID(app.ID), logger.Effect(eff.name), logger.Error(err))
		}
		disp.Done = append(disp.Done, eff.name)
	}

	if err := d.journal.Complete(ctx, disp.Key); err != nil {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "failed to complete dispatch",
			slog.String("dispatch_key", disp.Key), logger.Error(err))
	}
	d.metrics.dispatched(disp.Target, d.now().Sub(started))
	return nil
}

// compensate undoes effects in reverse order. Failures are logged; there is
// nothing further to fall back to.
func (d *Dispatcher) compensate(ctx context.Context, ec *effectContext, done []effect) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		eff := done[i]
		if err := eff.compensate(ctx, ec); err != nil {
			d.metrics.effect(eff.name, "compensation_failed")
			d.logger.LogAttrs(ctx, slog.LevelError, "compensation failed",
				logger.ApplicationID(ec.app.ID), logger.Effect(eff.name), logger.Error(err))
			continue
		}
		d.metrics.effect(eff.name, "compensated")
	}
}
