package application_test

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/idempotency"
	"github.com/stageroute/castflow/svc/application"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendPush(ctx context.Context, userID uuid.UUID, message string, metadata map[string]string) error {
	args := m.Called(ctx, userID, message, metadata)
	return args.Error(0)
}

func (m *mockNotifier) SendInApp(ctx context.Context, userID uuid.UUID, message string, metadata map[string]string) error {
	args := m.Called(ctx, userID, message, metadata)
	return args.Error(0)
}

func (m *mockNotifier) SendEmail(ctx context.Context, userID uuid.UUID, msg application.EmailMessage) error {
	args := m.Called(ctx, userID, msg)
	return args.Error(0)
}

func (m *mockNotifier) allowAll() *mockNotifier {
	m.On("SendPush", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SendInApp", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	return m
}

// failingLedger fails credits whose key starts with failPrefix.
type failingLedger struct {
	*application.MemoryLedger
	failPrefix string
}

func (l *failingLedger) Credit(ctx context.Context, userID uuid.UUID, amount int64, key string) (string, error) {
	if l.failPrefix != "" && strings.HasPrefix(key, l.failPrefix) {
		return "", errors.New("ledger unavailable")
	}
	return l.MemoryLedger.Credit(ctx, userID, amount, key)
}

// failingInvites fails invite creation while fail is set.
type failingInvites struct {
	*application.MemoryInvites
	fail atomic.Bool
}

func (s *failingInvites) CreateInvite(ctx context.Context, invite application.AuditionInvite) (application.AuditionInvite, error) {
	if s.fail.Load() {
		return application.AuditionInvite{}, errors.New("invite store unavailable")
	}
	return s.MemoryInvites.CreateInvite(ctx, invite)
}

// flakyLocker fails the next Acquire while failNext is set.
type flakyLocker struct {
	*idempotency.MemoryStore
	failNext atomic.Bool
}

func (l *flakyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.failNext.CompareAndSwap(true, false) {
		return false, errors.New("redis: connection refused")
	}
	return l.MemoryStore.Acquire(ctx, key, ttl)
}

type fixture struct {
	svc       *application.Service
	repo      *application.MemoryRepository
	invites   *failingInvites
	ledger    *failingLedger
	messenger *application.MemoryMessenger
	directory *application.MemoryDirectory
	journal   *application.MemoryJournal
	activity  *application.MemoryActivity
	notifier  *mockNotifier
	locker    *flakyLocker

	agent     application.User
	director  application.User
	candidate application.User
	job       application.Job
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	notifier *mockNotifier
	opts     []application.Option
	perms    application.StaticPermissions
}

func withNotifier(n *mockNotifier) fixtureOption {
	return func(c *fixtureConfig) { c.notifier = n }
}

func withServiceOptions(opts ...application.Option) fixtureOption {
	return func(c *fixtureConfig) { c.opts = append(c.opts, opts...) }
}

func withoutPermissions() fixtureOption {
	return func(c *fixtureConfig) { c.perms = application.StaticPermissions{} }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		repo:      application.NewMemoryRepository(),
		invites:   &failingInvites{MemoryInvites: application.NewMemoryInvites()},
		ledger:    &failingLedger{MemoryLedger: application.NewMemoryLedger()},
		messenger: application.NewMemoryMessenger(),
		directory: application.NewMemoryDirectory(),
		journal:   application.NewMemoryJournal(),
		activity:  application.NewMemoryActivity(),
		locker:    &flakyLocker{MemoryStore: idempotency.NewMemoryStore()},
	}

	f.agent = application.User{ID: uuid.New(), FirstName: "Agnes", Role: "agent"}
	f.director = application.User{
		ID:                uuid.New(),
		FirstName:         "Dario",
		Role:              "agent",
		IsCastingDirector: true,
	}
	f.candidate = application.User{
		ID:        uuid.New(),
		FirstName: "Cleo",
		Email:     "cleo@example.com",
		Role:      "talent",
		Preferences: application.Preferences{
			AppNotification:   true,
			PushNotification:  true,
			EmailNotification: true,
		},
	}
	f.job = application.Job{ID: uuid.New(), CreatedBy: f.director.ID, Title: "Night Shift", RequiredTokens: 4}

	f.directory.AddUser(f.agent)
	f.directory.AddUser(f.director)
	f.directory.AddUser(f.candidate)
	f.directory.AddJob(f.job)

	cfg := &fixtureConfig{
		perms: application.StaticPermissions{
			f.agent.ID:    {application.CapabilityRejectCandidate},
			f.director.ID: {application.CapabilityRejectCandidate},
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.notifier == nil {
		cfg.notifier = new(mockNotifier).allowAll()
	}
	f.notifier = cfg.notifier

	svc, err := application.New(application.Collaborators{
		Repository:  f.repo,
		Invites:     f.invites,
		Ledger:      f.ledger,
		Messenger:   f.messenger,
		Directory:   f.directory,
		Permissions: cfg.perms,
		Notifier:    f.notifier,
		Activity:    f.activity,
		Journal:     f.journal,
		Locker:      f.locker,
	}, cfg.opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

// seed stores an application for the fixture's job in state at revision 1.
func (f *fixture) seed(state application.State) application.Application {
	return f.seedFor(uuid.New(), state)
}

func (f *fixture) seedFor(userID uuid.UUID, state application.State) application.Application {
	now := time.Now().UTC()
	app := application.Application{
		ID:        uuid.New(),
		JobID:     f.job.ID,
		UserID:    userID,
		State:     state,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.repo.Put(app)
	return app
}

func (f *fixture) seedCandidate(state application.State) application.Application {
	return f.seedFor(f.candidate.ID, state)
}

func (f *fixture) get(t *testing.T, id uuid.UUID) application.Application {
	t.Helper()
	app, err := f.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return app
}

func invitePayload() application.Payload {
	return application.Payload{
		Title:        "Callback",
		Description:  "Cold read of scene 4",
		Location:     "Studio B",
		Date:         time.Date(2026, 11, 3, 15, 0, 0, 0, time.UTC),
		AuditionType: application.AuditionTheatre,
	}
}

// countCalls counts recorded calls of method whose argument at index equals want.
func countCalls(m *mock.Mock, method string, index int, want any) int {
	n := 0
	for _, call := range m.Calls {
		if call.Method == method && call.Arguments.Get(index) == want {
			n++
		}
	}
	return n
}
