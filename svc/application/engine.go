package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/logger"
)

// TransitionRequest asks the engine to fire one transition.
type TransitionRequest struct {
	ApplicationID uuid.UUID
	Transition    Transition
	ActorID       uuid.UUID
	Payload       Payload
	// ExpectedRevision, when non-zero, must match the stored revision.
	ExpectedRevision int64
}

// Result describes a committed transition.
type Result struct {
	Application Application `json:"application"`
	From        State       `json:"from"`
	To          State       `json:"to"`
	Transition  Transition  `json:"transition"`
	Revision    int64       `json:"revision"`
	// Deferred is true when the side effects could not run to completion now
	// and were left to the reconciler. The state change stands.
	Deferred bool `json:"deferred,omitempty"`
}

// Engine validates and commits transitions, then hands them to the Dispatcher.
type Engine struct {
	graph      *Graph
	repo       Repository
	perms      PermissionChecker
	journal    DispatchJournal
	dispatcher *Dispatcher
	logger     *slog.Logger
	metrics    *Metrics
	now        func() time.Time
}

func newEngine(c Collaborators, d *Dispatcher, cfg *options) *Engine {
	return &Engine{
		graph:      lifecycle,
		repo:       c.Repository,
		perms:      c.Permissions,
		journal:    c.Journal,
		dispatcher: d,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		now:        cfg.now,
	}
}

// Transition fires req. Nothing is written unless the transition is known,
// legal from the current state, permitted for the actor and its payload is
// valid. Entering applied always checks and debits the job's token cost. A critical side-effect failure reverts the state and returns a
// *SideEffectError together with the reverted application.
func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (Result, error) {
	res, err := e.transition(ctx, req)
	if err != nil && !IsSideEffectError(err) {
		e.metrics.failure(req.Transition, err)
	}
	return res, err
}

func (e *Engine) transition(ctx context.Context, req TransitionRequest) (Result, error) {
	edge, ok := e.graph.Edge(req.Transition)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownTransition, req.Transition)
	}

	app, err := e.repo.Get(ctx, req.ApplicationID)
	if err != nil {
		return Result{}, err
	}
	if req.ExpectedRevision != 0 && req.ExpectedRevision != app.Revision {
		return Result{}, fmt.Errorf("%w: expected revision %d, stored %d",
			ErrConcurrentModification, req.ExpectedRevision, app.Revision)
	}
	if !edge.AllowsFrom(app.State) {
		return Result{}, &IllegalTransitionError{From: app.State, To: edge.Target, Transition: req.Transition}
	}
	if err := e.authorize(ctx, req.ActorID, edge); err != nil {
		return Result{}, err
	}

	now := e.now()
	disp := Dispatch{
		Key:           DispatchKey(app.ID, edge.Target, app.Revision+1),
		Attempt:       uuid.New(),
		ApplicationID: app.ID,
		ActorID:       req.ActorID,
		Transition:    req.Transition,
		From:          app.State,
		Target:        edge.Target,
		Revision:      app.Revision + 1,
		Payload:       req.Payload,
		ChargeTokens:  edge.Target == StateApplied,
		Status:        DispatchPrepared,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.dispatcher.Validate(ctx, app, disp); err != nil {
		return Result{}, err
	}

	if err := e.journal.Prepare(ctx, disp); err != nil {
		return Result{}, fmt.Errorf("prepare dispatch: %w", err)
	}

	next, err := e.repo.CompareAndSwap(ctx, app.ID, app.Revision, edge.Target, now)
	if err != nil {
		if abandonErr := e.journal.Abandon(ctx, disp.Key, disp.Attempt); abandonErr != nil {
			e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to abandon dispatch",
				slog.String("dispatch_key", disp.Key), logger.Error(abandonErr))
		}
		return Result{}, err
	}
	e.metrics.transition(req.Transition)

	disp.Status = DispatchCommitted
	if err := e.journal.Commit(ctx, disp); err != nil {
		// the reconciler commits prepared records whose revision was reached
		e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to commit dispatch",
			slog.String("dispatch_key", disp.Key), logger.Error(err))
	}

	e.logger.LogAttrs(ctx, slog.LevelInfo, "application transitioned",
		logger.ApplicationID(app.ID),
		logger.ActorID(req.ActorID),
		logger.Transition(string(req.Transition)),
		slog.String("from", string(app.State)),
		slog.String("to", string(edge.Target)),
		logger.Revision(next.Revision),
	)

	return e.dispatch(ctx, next, disp)
}

func (e *Engine) authorize(ctx context.Context, actorID uuid.UUID, edge Edge) error {
	if !edge.RequiresPermission() {
		return nil
	}
	ok, err := e.perms.HasCapability(ctx, actorID, edge.Permission)
	if err != nil {
		return fmt.Errorf("check capability %q: %w", edge.Permission, err)
	}
	if !ok {
		return &PermissionDeniedError{Capability: edge.Permission, ActorID: actorID, Transition: edge.Event}
	}
	return nil
}

// dispatch runs disp's effects for app and turns a critical failure into a revert.
func (e *Engine) dispatch(ctx context.Context, app Application, disp Dispatch) (Result, error) {
	res := Result{
		Application: app,
		From:        disp.From,
		To:          disp.Target,
		Transition:  disp.Transition,
		Revision:    app.Revision,
	}

	err := e.dispatcher.Run(ctx, disp)
	var failure *effectFailure
	switch {
	case err == nil:
		if current, getErr := e.repo.Get(ctx, app.ID); getErr == nil {
			res.Application = current
		}
		return res, nil
	case errors.As(err, &failure):
		return e.rollback(ctx, res, disp, failure)
	default:
		e.logger.LogAttrs(ctx, slog.LevelWarn, "side effects deferred",
			logger.ApplicationID(app.ID),
			slog.String("dispatch_key", disp.Key),
			logger.Error(err),
		)
		res.Deferred = true
		return res, nil
	}
}

// rollback reverts the application to disp.From with a second CAS, so the
// revision still advances and every observer sees a total order.
func (e *Engine) rollback(ctx context.Context, res Result, disp Dispatch, failure *effectFailure) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	sideErr := &SideEffectError{Effect: failure.effect, Err: failure.err}

	reverted, err := e.repo.CompareAndSwap(ctx, disp.ApplicationID, disp.Revision, disp.From, e.now())
	if err != nil {
		e.logger.LogAttrs(ctx, slog.LevelError, "failed to revert transition after side effect failure",
			logger.ApplicationID(disp.ApplicationID),
			logger.Effect(failure.effect),
			logger.Revision(disp.Revision),
			logger.Error(err),
		)
	} else {
		sideErr.RolledBack = true
		res.Application = reverted
		res.Revision = reverted.Revision
	}
	e.metrics.rollback(disp.Target, sideErr.RolledBack)

	if err := e.journal.RolledBack(ctx, disp.Key, failure.Error()); err != nil {
		e.logger.LogAttrs(ctx, slog.LevelWarn, "failed to journal rollback",
			slog.String("dispatch_key", disp.Key), logger.Error(err))
	}
	return res, sideErr
}

// resume continues a committed dispatch, as the reconciler and Redispatch do.
func (e *Engine) resume(ctx context.Context, disp Dispatch) (Result, error) {
	app, err := e.repo.Get(ctx, disp.ApplicationID)
	if err != nil {
		return Result{}, err
	}
	return e.dispatch(ctx, app, disp)
}
