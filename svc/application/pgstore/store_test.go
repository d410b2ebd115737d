package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/logger"
	"github.com/stageroute/castflow/pkg/notifications"
	"github.com/stageroute/castflow/pkg/pg"
	"github.com/stageroute/castflow/svc/application"
	"github.com/stageroute/castflow/svc/application/pgstore"
)

// openStore connects to CASTFLOW_TEST_PG_URL and migrates it. Tests skip
// when the variable is unset.
func openStore(t *testing.T) (*pgstore.Store, *pgxpool.Pool) {
	t.Helper()
	url := os.Getenv("CASTFLOW_TEST_PG_URL")
	if url == "" {
		t.Skip("CASTFLOW_TEST_PG_URL not set")
	}
	ctx := context.Background()
	cfg := pg.Config{ConnectionString: url, MaxConns: 4, RetryAttempts: 1, MigrationsTable: "castflow_test_migrations"}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pgstore.Migrate(ctx, pool, cfg, logger.Discard()))
	return pgstore.New(pool), pool
}

func TestApplications(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	repo := store.Applications()
	jobID, userID := uuid.New(), uuid.New()

	app, created, err := repo.GetOrCreate(ctx, jobID, userID)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, application.StateInitiated, app.State)
	assert.Equal(t, int64(1), app.Revision)

	again, created, err := repo.GetOrCreate(ctx, jobID, userID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, app.ID, again.ID)

	moved, err := repo.CompareAndSwap(ctx, app.ID, 1, application.StateApplied, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved.Revision)
	assert.Equal(t, application.StateApplied, moved.State)

	_, err = repo.CompareAndSwap(ctx, app.ID, 1, application.StateShortlisted, time.Now().UTC())
	require.ErrorIs(t, err, application.ErrConcurrentModification)
	_, err = repo.CompareAndSwap(ctx, uuid.New(), 1, application.StateShortlisted, time.Now().UTC())
	require.ErrorIs(t, err, application.ErrApplicationNotFound)

	require.NoError(t, repo.SetRejectionReason(ctx, app.ID, "not a fit"))
	got, err := repo.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "not a fit", got.RejectionReason)

	list, err := repo.ListByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestLedger(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	ledger := store.Ledger()
	user := uuid.New()
	ref := "apply_" + uuid.NewString()

	require.NoError(t, ledger.SetBalance(ctx, user, 5))
	first, err := ledger.Debit(ctx, user, 4, ref)
	require.NoError(t, err)
	second, err := ledger.Debit(ctx, user, 4, ref)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	balance, err := ledger.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(1), balance)

	_, err = ledger.Debit(ctx, user, 4, "apply_"+uuid.NewString())
	require.ErrorIs(t, err, application.ErrInsufficientTokens)

	_, err = ledger.Debit(ctx, uuid.New(), 1, "apply_"+uuid.NewString())
	require.ErrorIs(t, err, application.ErrInsufficientTokens, "no account")

	_, err = ledger.Credit(ctx, user, 3, "refund_"+ref)
	require.NoError(t, err)
	balance, err = ledger.Balance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(4), balance)
}

func TestJournal(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()
	journal := store.Journal()
	appID := uuid.New()
	key := application.DispatchKey(appID, application.StateInvited, 3)

	d := application.Dispatch{
		Key: key, Attempt: uuid.New(), ApplicationID: appID, ActorID: uuid.New(),
		Transition: application.TransitionDirectInvite, From: application.StateApplied,
		Target: application.StateInvited, Revision: 3,
		Payload: application.Payload{Title: "Night Shift", Location: "Theatre"},
	}
	require.NoError(t, journal.Prepare(ctx, d))
	require.NoError(t, journal.Commit(ctx, d))
	require.NoError(t, journal.MarkEffect(ctx, key, application.EffectCreateInvite))
	require.NoError(t, journal.MarkEffect(ctx, key, application.EffectCreateInvite))

	got, err := journal.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, application.DispatchCommitted, got.Status)
	assert.Equal(t, []string{application.EffectCreateInvite}, got.Done)
	assert.Equal(t, "Night Shift", got.Payload.Title)

	unfinished, err := journal.Unfinished(ctx, time.Now().Add(time.Minute), 1000)
	require.NoError(t, err)
	assert.Condition(t, func() bool {
		for _, u := range unfinished {
			if u.Key == key {
				return true
			}
		}
		return false
	})

	require.NoError(t, journal.Complete(ctx, key))
	latest, err := journal.Latest(ctx, appID)
	require.NoError(t, err)
	assert.Equal(t, application.DispatchCompleted, latest.Status)

	require.ErrorIs(t, journal.Complete(ctx, "missing"), application.ErrDispatchNotFound)
	_, err = journal.Latest(ctx, uuid.New())
	require.ErrorIs(t, err, application.ErrDispatchNotFound)
}

func TestInvitesAndNotifications(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	app, _, err := store.Applications().GetOrCreate(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	invites := store.Invites()
	invite := application.AuditionInvite{
		ID: uuid.New(), Title: "Night Shift", Description: "Callback", Location: "Theatre",
		Date: time.Now().UTC().Truncate(time.Second), CreatedBy: uuid.New(),
		ApplicationIDs: []uuid.UUID{app.ID}, CreatedAt: time.Now().UTC(),
	}
	_, err = invites.CreateInvite(ctx, invite)
	require.NoError(t, err)
	_, err = invites.CreateInvite(ctx, invite)
	require.NoError(t, err)

	msgID, err := store.Messages().SendMessage(ctx, invite.CreatedBy, app.UserID, "Night Shift", "body")
	require.NoError(t, err)
	require.NoError(t, invites.LinkMessage(ctx, invite.ID, msgID))
	require.NoError(t, invites.LinkMessage(ctx, invite.ID, uuid.New()))
	require.ErrorIs(t, invites.LinkMessage(ctx, uuid.New(), msgID), application.ErrInviteNotFound)

	listed, err := invites.InvitesForApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].MessageID)
	assert.Equal(t, msgID, *listed[0].MessageID)

	require.NoError(t, invites.DeleteInvite(ctx, invite.ID))
	listed, err = invites.InvitesForApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)

	m := notifications.NewManager(store.Notifications(), nil)
	require.NoError(t, m.Send(ctx, notifications.Notification{UserID: app.UserID, Channel: notifications.ChannelPush, Message: "shortlisted"}))
	stored, err := m.List(ctx, app.UserID, notifications.ListOptions{OnlyUnread: true})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NoError(t, m.MarkRead(ctx, app.UserID, stored[0].ID))
	stored, err = m.List(ctx, app.UserID, notifications.ListOptions{OnlyUnread: true})
	require.NoError(t, err)
	assert.Empty(t, stored)
}
