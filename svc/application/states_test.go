package application_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/svc/application"
)

func TestLifecycle_Table(t *testing.T) {
	t.Parallel()
	g := application.Lifecycle()

	assert.Equal(t, application.StateInitiated, g.Initial())
	assert.Len(t, g.States(), 13)
	for _, s := range []application.State{application.StateAccepted, application.StateRejected, application.StateJobClosed} {
		assert.True(t, g.IsTerminal(s), s)
		assert.Empty(t, g.Allowed(s), s)
	}

	tests := []struct {
		transition application.Transition
		target     application.State
		sources    []application.State
		permission string
	}{
		{application.TransitionApply, application.StateApplied,
			[]application.State{application.StateInitiated, application.StatePipelined, application.StateIgnored}, ""},
		{application.TransitionDirectInvite, application.StateInvited,
			[]application.State{application.StateApplied, application.StateInitiated}, ""},
		{application.TransitionShortlist, application.StateShortlisted,
			[]application.State{application.StateInitiated, application.StateApplied}, application.CapabilityRejectCandidate},
		{application.TransitionInvite, application.StateInvited,
			[]application.State{application.StateShortlisted}, ""},
		{application.TransitionTerminateAfterInviteReject, application.StateRejected,
			[]application.State{application.StateInviteRejected}, ""},
		{application.TransitionHoldCandidate, application.StateOnHold,
			[]application.State{application.StateAuditionDone}, ""},
		{application.TransitionAgentReject, application.StateRejected, []application.State{
			application.StateInitiated, application.StateApplied, application.StateShortlisted, application.StateInvited,
			application.StateInviteAccepted, application.StateAuditionDone, application.StateOnHold,
		}, application.CapabilityRejectCandidate},
	}

	for _, tt := range tests {
		edge, ok := g.Edge(tt.transition)
		require.True(t, ok, tt.transition)
		assert.Equal(t, tt.target, edge.Target, tt.transition)
		assert.ElementsMatch(t, tt.sources, edge.Sources, tt.transition)
		assert.Equal(t, tt.permission, edge.Permission, tt.transition)

		for _, s := range g.States() {
			want := false
			for _, src := range tt.sources {
				want = want || src == s
			}
			assert.Equal(t, want, g.CanFire(s, tt.transition), "%s from %s", tt.transition, s)
		}
	}
}

func TestParseState(t *testing.T) {
	t.Parallel()

	s, err := application.ParseState("invite_accepted")
	require.NoError(t, err)
	assert.Equal(t, application.StateInviteAccepted, s)

	_, err = application.ParseState("Initiated")
	require.ErrorIs(t, err, application.ErrUnknownState)
}

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want application.ErrorKind
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", application.ErrConcurrentModification), application.KindConcurrentModification},
		{application.ErrUnknownTransition, application.KindUnknownTransition},
		{&application.IllegalTransitionError{}, application.KindIllegalTransition},
		{&application.PermissionDeniedError{}, application.KindPermissionDenied},
		{&application.ValidationError{Err: errors.New("bad")}, application.KindValidation},
		{application.ErrEmptyBatch, application.KindValidation},
		{&application.SideEffectError{Err: application.ErrUserNotFound}, application.KindSideEffectFailed},
		{application.ErrJobNotFound, application.KindNotFound},
		{errors.New("disk on fire"), application.KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, application.Kind(tt.err), "%v", tt.err)
	}
}

func TestDispatchKey(t *testing.T) {
	t.Parallel()
	app := application.NewApplication(uuid.New(), uuid.New(), time.Now())
	assert.Equal(t, app.ID.String()+":invited:4", application.DispatchKey(app.ID, application.StateInvited, 4))
	assert.Equal(t, int64(1), app.Revision)
	assert.Equal(t, application.StateInitiated, app.State)
}
