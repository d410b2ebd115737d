package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/idempotency"
	"github.com/stageroute/castflow/pkg/logger"
)

var ErrMissingCollaborator = errors.New("application.missing_collaborator")

// Collaborators are the external services the lifecycle consumes.
// Notifier, Activity, Journal and Locker are optional; the rest are required.
type Collaborators struct {
	Repository  Repository
	Invites     InviteStore
	Ledger      Ledger
	Messenger   Messenger
	Directory   Directory
	Permissions PermissionChecker

	Notifier Notifier
	Activity ActivityRecorder
	Journal  DispatchJournal
	Locker   idempotency.Locker
}

func (c *Collaborators) check() error {
	missing := func(name string) error { return fmt.Errorf("%w: %s", ErrMissingCollaborator, name) }
	switch {
	case c.Repository == nil:
		return missing("repository")
	case c.Invites == nil:
		return missing("invites")
	case c.Ledger == nil:
		return missing("ledger")
	case c.Messenger == nil:
		return missing("messenger")
	case c.Directory == nil:
		return missing("directory")
	case c.Permissions == nil:
		return missing("permissions")
	}
	if c.Notifier == nil {
		c.Notifier = nopNotifier{}
	}
	if c.Activity == nil {
		c.Activity = nopActivity{}
	}
	if c.Journal == nil {
		c.Journal = NewMemoryJournal()
	}
	if c.Locker == nil {
		c.Locker = idempotency.NewMemoryStore()
	}
	return nil
}

// Service is the entry point to the application lifecycle.
type Service struct {
	*Coordinator

	engine     *Engine
	dispatcher *Dispatcher
	repo       Repository
	invites    InviteStore
	journal    DispatchJournal
	logger     *slog.Logger
}

// New wires the engine, dispatcher and bulk coordinator over c.
func New(c Collaborators, opts ...Option) (*Service, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}

	dispatcher := newDispatcher(c, cfg)
	engine := newEngine(c, dispatcher, cfg)
	return &Service{
		Coordinator: newCoordinator(c, engine, cfg),
		engine:      engine,
		dispatcher:  dispatcher,
		repo:        c.Repository,
		invites:     c.Invites,
		journal:     c.Journal,
		logger:      cfg.logger,
	}, nil
}

// Transition fires one transition on an existing application.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (Result, error) {
	return s.engine.Transition(ctx, req)
}

// actTransitions maps the states a candidate may choose on a job to the
// transition that reaches them.
var actTransitions = map[State]Transition{
	StateApplied:   TransitionApply,
	StatePipelined: TransitionPipeline,
	StateIgnored:   TransitionIgnore,
}

// Act records a candidate's choice on a job: apply, pipeline or ignore. The
// application is created on first use. Applying checks and debits the job's
// token cost. Choosing the state the application is already in returns it
// unchanged.
func (s *Service) Act(ctx context.Context, jobID, userID uuid.UUID, action string) (Result, error) {
	target := State(action)
	name, ok := actTransitions[target]
	if !ok {
		return Result{}, fieldError("action", "must be one of: applied, pipelined, ignored")
	}

	if target == StateApplied {
		if err := s.dispatcher.checkBalance(ctx, jobID, userID); err != nil {
			return Result{}, err
		}
	} else if _, err := s.dispatcher.directory.Job(ctx, jobID); err != nil {
		return Result{}, err
	}

	app, created, err := s.repo.GetOrCreate(ctx, jobID, userID)
	if err != nil {
		return Result{}, err
	}
	if created {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "application created",
			logger.ApplicationID(app.ID), logger.JobID(jobID), logger.UserID(userID))
	}
	if app.State == target {
		return Result{Application: app, From: app.State, To: app.State, Revision: app.Revision}, nil
	}

	return s.engine.Transition(ctx, TransitionRequest{
		ApplicationID:    app.ID,
		Transition:       name,
		ActorID:          userID,
		ExpectedRevision: app.Revision,
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Application, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByJob(ctx context.Context, jobID uuid.UUID) ([]Application, error) {
	return s.repo.ListByJob(ctx, jobID)
}

// AllowedTransitions lists the transitions legal from the application's current state.
func (s *Service) AllowedTransitions(ctx context.Context, id uuid.UUID) ([]Transition, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return lifecycle.Allowed(app.State), nil
}

// Invites lists the audition invites covering an application.
func (s *Service) Invites(ctx context.Context, id uuid.UUID) ([]AuditionInvite, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.invites.InvitesForApplication(ctx, id)
}

// Redispatch re-runs the newest dispatch of an application. Finished
// dispatches are returned as they are; committed ones resume where they stopped.
func (s *Service) Redispatch(ctx context.Context, id uuid.UUID) (Dispatch, error) {
	disp, err := s.journal.Latest(ctx, id)
	if err != nil {
		return Dispatch{}, err
	}
	if disp.Status != DispatchCommitted {
		return disp, nil
	}
	if _, err := s.engine.resume(ctx, disp); err != nil && !IsSideEffectError(err) {
		return Dispatch{}, err
	}
	return s.journal.Get(ctx, disp.Key)
}

type nopNotifier struct{}

func (nopNotifier) SendPush(context.Context, uuid.UUID, string, map[string]string) error  { return nil }
func (nopNotifier) SendInApp(context.Context, uuid.UUID, string, map[string]string) error { return nil }
func (nopNotifier) SendEmail(context.Context, uuid.UUID, EmailMessage) error             { return nil }

type nopActivity struct{}

func (nopActivity) Record(context.Context, Activity) error { return nil }
