// Package applications exposes the application lifecycle over HTTP.
//
//	mod := applications.New(svc, applications.WithIdempotency(store))
//	r.Mount("/", mod.Handle())
//
// Every request names its caller in the X-Actor-ID header. POST requests may
// carry an Idempotency-Key header; a retried request with the same key and body
// replays the first response.
package applications

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stageroute/castflow/handler"
	"github.com/stageroute/castflow/pkg/binder"
	"github.com/stageroute/castflow/pkg/logger"
	"github.com/stageroute/castflow/svc/application"
)

// Service is the slice of the lifecycle service the routes call.
type Service interface {
	Act(ctx context.Context, jobID, userID uuid.UUID, action string) (application.Result, error)
	Transition(ctx context.Context, req application.TransitionRequest) (application.Result, error)
	Get(ctx context.Context, id uuid.UUID) (application.Application, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]application.Application, error)
	AllowedTransitions(ctx context.Context, id uuid.UUID) ([]application.Transition, error)
	Invites(ctx context.Context, id uuid.UUID) ([]application.AuditionInvite, error)
	Redispatch(ctx context.Context, id uuid.UUID) (application.Dispatch, error)
	BulkTransitionByApplication(ctx context.Context, items []application.BulkItem, actorID uuid.UUID) (application.BulkReport, error)
	BulkTransitionByUsers(ctx context.Context, req application.BulkUsersRequest) (application.UsersReport, error)
}

type Module struct {
	svc         Service
	idempotency IdempotencyStore
	keyTTL      time.Duration
	lockTTL     time.Duration
	bulkLimit   func(http.Handler) http.Handler
	logger      *slog.Logger
}

type Option func(*Module)

// WithIdempotency enables Idempotency-Key replay backed by store.
func WithIdempotency(store IdempotencyStore) Option {
	return func(m *Module) { m.idempotency = store }
}

// WithIdempotencyTTL sets how long replayable responses are kept. Default 24h.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(m *Module) {
		if ttl > 0 {
			m.keyTTL = ttl
		}
	}
}

// WithIdempotencyLockTTL bounds how long a key stays locked while its first
// request runs. A lock left behind by a crashed process expires after ttl.
// Default 1m.
func WithIdempotencyLockTTL(ttl time.Duration) Option {
	return func(m *Module) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithBulkLimit guards both bulk endpoints with mw, typically a rate limiter.
func WithBulkLimit(mw func(http.Handler) http.Handler) Option {
	return func(m *Module) { m.bulkLimit = mw }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

func New(svc Service, opts ...Option) *Module {
	m := &Module{
		svc:     svc,
		keyTTL:  24 * time.Hour,
		lockTTL: time.Minute,
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle returns the module router.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()
	if m.idempotency != nil {
		r.Use(m.replay)
	}
	errs := handler.WithErrorHandler(m.renderError)
	limited := func(next http.Handler) http.Handler { return next }
	if m.bulkLimit != nil {
		limited = m.bulkLimit
	}

	r.Route("/jobs/{jobID}/applications", func(r chi.Router) {
		r.Post("/", handler.Wrap(m.act, handler.WithBinders(binder.Path(), binder.Header(), binder.JSON()), errs))
		r.Get("/", handler.Wrap(m.list, handler.WithBinders(binder.Path(), binder.Header()), errs))
		r.With(limited).Post("/bulk", handler.Wrap(m.bulkByUsers, handler.WithBinders(binder.Path(), binder.Header(), binder.JSON()), errs))
	})

	r.Route("/applications", func(r chi.Router) {
		r.With(limited).Post("/bulk", handler.Wrap(m.bulkByApplication, handler.WithBinders(binder.Header(), binder.JSON()), errs))
		r.Get("/{id}", handler.Wrap(m.get, handler.WithBinders(binder.Path(), binder.Header()), errs))
		r.Get("/{id}/invites", handler.Wrap(m.invites, handler.WithBinders(binder.Path(), binder.Header()), errs))
		r.Post("/{id}/transitions", handler.Wrap(m.transition, handler.WithBinders(binder.Path(), binder.Header(), binder.JSON()), errs))
		r.Post("/{id}/redispatch", handler.Wrap(m.redispatch, handler.WithBinders(binder.Path(), binder.Header()), errs))
	})

	return r
}
