package application_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/svc/application"
)

func TestBulkTransitionByApplication(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	applied := f.seedCandidate(application.StateApplied)
	shortlistedUser := uuid.New()
	shortlisted := f.seedFor(shortlistedUser, application.StateShortlisted)
	stuck := f.seed(application.StateApplied)
	onHold := f.seed(application.StateOnHold)
	badTarget := f.seed(application.StateInitiated)
	missing := uuid.New()

	report, err := f.svc.BulkTransitionByApplication(ctx, []application.BulkItem{
		{ApplicationID: applied.ID, TargetState: "invited", Payload: invitePayload()},
		{ApplicationID: shortlisted.ID, TargetState: "invited", Payload: invitePayload()},
		{ApplicationID: stuck.ID, TargetState: "accepted"},
		{ApplicationID: onHold.ID, TargetState: "rejected"},
		{ApplicationID: badTarget.ID, TargetState: "vanished"},
		{ApplicationID: missing, TargetState: "shortlisted"},
	}, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, report.Results, 6)
	assert.Equal(t, 3, report.Failed())

	res, ok := report.Get(applied.ID)
	require.True(t, ok)
	assert.NoError(t, res.Err)
	assert.Equal(t, application.StateInvited, f.get(t, applied.ID).State)

	res, ok = report.Get(shortlisted.ID)
	require.True(t, ok)
	assert.NoError(t, res.Err)
	assert.Equal(t, application.StateInvited, f.get(t, shortlisted.ID).State)

	res, _ = report.Get(stuck.ID)
	assert.Equal(t, application.KindIllegalTransition, application.Kind(res.Err))
	assert.Equal(t, stuck.UserID, res.UserID)
	assert.Equal(t, application.StateApplied, f.get(t, stuck.ID).State)

	res, _ = report.Get(onHold.ID)
	assert.NoError(t, res.Err)
	stored := f.get(t, onHold.ID)
	assert.Equal(t, application.StateRejected, stored.State)

	res, _ = report.Get(badTarget.ID)
	assert.Equal(t, application.KindValidation, application.Kind(res.Err))
	assert.Equal(t, badTarget.UserID, res.UserID)

	res, _ = report.Get(missing)
	assert.Equal(t, application.KindNotFound, application.Kind(res.Err))

	raw, err := json.Marshal(report)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.JSONEq(t, `"success"`, string(decoded[applied.ID.String()]))

	var item struct {
		Error  string `json:"error"`
		Kind   string `json:"kind"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(decoded[stuck.ID.String()], &item))
	assert.Equal(t, "illegal_transition", item.Kind)
	assert.Equal(t, stuck.UserID.String(), item.UserID)
	assert.NotEmpty(t, item.Error)
}

func TestBulkTransitionByApplication_ResolvesTransitionFromCurrentState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		from   application.State
		target string
		want   application.Transition
	}{
		{"applied to invited uses direct invite", application.StateApplied, "invited", application.TransitionDirectInvite},
		{"initiated to invited", application.StateInitiated, "invited", application.TransitionDirectInvite},
		{"shortlisted to invited", application.StateShortlisted, "invited", application.TransitionInvite},
		{"invite rejected to rejected", application.StateInviteRejected, "rejected", application.TransitionTerminateAfterInviteReject},
		{"audition done to rejected", application.StateAuditionDone, "rejected", application.TransitionRejectCandidate},
		{"shortlisted to rejected", application.StateShortlisted, "rejected", application.TransitionAgentReject},
		{"pipelined to applied", application.StatePipelined, "applied", application.TransitionApply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			app := f.seedCandidate(tt.from)
			f.ledger.SetBalance(f.candidate.ID, 10)

			report, err := f.svc.BulkTransitionByApplication(context.Background(), []application.BulkItem{
				{ApplicationID: app.ID, TargetState: tt.target, Payload: invitePayload()},
			}, f.agent.ID)
			require.NoError(t, err)
			res, ok := report.Get(app.ID)
			require.True(t, ok)
			require.NoError(t, res.Err)

			history := f.activity.For(app.ID)
			require.Len(t, history, 1)
			assert.Equal(t, tt.want, history[0].Transition)
		})
	}
}

func TestBulkTransitionByApplication_InitiatedHasNoInboundEdge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.seed(application.StateApplied)

	report, err := f.svc.BulkTransitionByApplication(context.Background(), []application.BulkItem{
		{ApplicationID: app.ID, TargetState: "initiated"},
	}, f.agent.ID)
	require.NoError(t, err)
	res, _ := report.Get(app.ID)
	assert.Equal(t, application.KindValidation, application.Kind(res.Err))
}

func TestBulkTransitionByApplication_EmptyBatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.BulkTransitionByApplication(context.Background(), nil, f.agent.ID)
	require.ErrorIs(t, err, application.ErrEmptyBatch)
}

func TestBulkTransitionByApplication_DuplicateIDsProcessedOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	app := f.seed(application.StateInitiated)

	report, err := f.svc.BulkTransitionByApplication(context.Background(), []application.BulkItem{
		{ApplicationID: app.ID, TargetState: "pipelined"},
		{ApplicationID: app.ID, TargetState: "ignored"},
	}, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.NoError(t, report.Results[0].Err)
	assert.Equal(t, application.StatePipelined, f.get(t, app.ID).State)
}

func TestBulkTransitionByApplication_Concurrent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, withServiceOptions(application.WithBulkConcurrency(4)))

	items := make([]application.BulkItem, 0, 20)
	for range 20 {
		app := f.seed(application.StateInitiated)
		items = append(items, application.BulkItem{ApplicationID: app.ID, TargetState: "pipelined"})
	}

	report, err := f.svc.BulkTransitionByApplication(context.Background(), items, f.agent.ID)
	require.NoError(t, err)
	require.Len(t, report.Results, len(items))
	for i, res := range report.Results {
		assert.Equal(t, items[i].ApplicationID, res.ApplicationID, "results keep input order")
		assert.NoError(t, res.Err)
	}
}

func TestBulkTransitionByUsers(t *testing.T) {
	t.Parallel()

	t.Run("creates applications and shortlists", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		users := []uuid.UUID{f.candidate.ID, uuid.New(), uuid.New()}

		report, err := f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
			JobID:       f.job.ID,
			UserIDs:     users,
			TargetState: "shortlisted",
			ActorID:     f.agent.ID,
		})
		require.NoError(t, err)
		assert.Empty(t, report.Errors)
		require.Len(t, report.Success, len(users))

		for i, s := range report.Success {
			assert.Equal(t, users[i], s.UserID)
			app := f.get(t, s.ApplicationID)
			assert.Equal(t, application.StateShortlisted, app.State)
			assert.Equal(t, f.job.ID, app.JobID)
		}

		apps, err := f.svc.ListByJob(context.Background(), f.job.ID)
		require.NoError(t, err)
		assert.Len(t, apps, len(users))
	})

	t.Run("invite from shortlisted uses invite", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		app := f.seedCandidate(application.StateShortlisted)
		fresh := uuid.New()

		report, err := f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
			JobID:       f.job.ID,
			UserIDs:     []uuid.UUID{f.candidate.ID, fresh},
			TargetState: "invited",
			ActorID:     f.agent.ID,
			Payload:     invitePayload(),
		})
		require.NoError(t, err)
		require.Len(t, report.Success, 2)
		assert.Equal(t, app.ID, report.Success[0].ApplicationID)

		assert.Equal(t, application.TransitionInvite, f.activity.For(app.ID)[0].Transition)
		assert.Equal(t, application.TransitionDirectInvite, f.activity.For(report.Success[1].ApplicationID)[0].Transition)
		assert.Equal(t, 2, f.invites.Count())
	})

	t.Run("per user failures do not abort the batch", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		rejected := f.seedCandidate(application.StateRejected)
		other := uuid.New()

		report, err := f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
			JobID:       f.job.ID,
			UserIDs:     []uuid.UUID{rejected.UserID, other},
			TargetState: "rejected",
			ActorID:     f.agent.ID,
			Payload:     application.Payload{RejectionReason: "Role cut"},
		})
		require.NoError(t, err)
		require.Len(t, report.Errors, 1)
		assert.Equal(t, rejected.UserID, report.Errors[0].UserID)
		assert.Equal(t, application.KindIllegalTransition, report.Errors[0].Kind)
		assert.NotEmpty(t, report.Errors[0].Detail)

		require.Len(t, report.Success, 1)
		assert.Equal(t, other, report.Success[0].UserID)
		assert.Equal(t, "Role cut", f.get(t, report.Success[0].ApplicationID).RejectionReason)
	})

	t.Run("missing capability is reported per user", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, withoutPermissions())
		users := []uuid.UUID{uuid.New(), uuid.New()}

		report, err := f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
			JobID:       f.job.ID,
			UserIDs:     users,
			TargetState: "invited",
			ActorID:     f.agent.ID,
			Payload:     invitePayload(),
		})
		require.NoError(t, err)
		assert.Empty(t, report.Success)
		require.Len(t, report.Errors, 2)
		for i, e := range report.Errors {
			assert.Equal(t, users[i], e.UserID)
			assert.Equal(t, application.KindPermissionDenied, e.Kind)
		}

		apps, err := f.svc.ListByJob(context.Background(), f.job.ID)
		require.NoError(t, err)
		assert.Empty(t, apps, "no application is created when permission is denied")
	})

	t.Run("whole call failures", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
			JobID:       f.job.ID,
			TargetState: "shortlisted",
			ActorID:     f.agent.ID,
		})
		require.ErrorIs(t, err, application.ErrEmptyBatch)
		assert.Equal(t, application.KindValidation, application.Kind(err))

		for _, target := range []string{"accepted", "applied", "nonsense"} {
			_, err = f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
				JobID:       f.job.ID,
				UserIDs:     []uuid.UUID{uuid.New()},
				TargetState: target,
				ActorID:     f.agent.ID,
			})
			require.Error(t, err, target)
			assert.True(t, application.IsValidationError(err), target)
		}

		_, err = f.svc.BulkTransitionByUsers(context.Background(), application.BulkUsersRequest{
			JobID:       uuid.New(),
			UserIDs:     []uuid.UUID{uuid.New()},
			TargetState: "shortlisted",
			ActorID:     f.agent.ID,
		})
		require.ErrorIs(t, err, application.ErrJobNotFound)
	})

	t.Run("json shape", func(t *testing.T) {
		t.Parallel()
		report := application.UsersReport{
			Errors:  []application.UserError{},
			Success: []application.UserSuccess{},
		}
		raw, err := json.Marshal(report)
		require.NoError(t, err)
		assert.JSONEq(t, `{"errors":[],"success":[]}`, string(raw))
	})
}
