package application

import (
	"fmt"

	"github.com/stageroute/castflow/pkg/statemachine"
)

// State is a lifecycle state of an application. The set is closed.
type State string

const (
	StateInitiated      State = "initiated"
	StatePipelined      State = "pipelined"
	StateIgnored        State = "ignored"
	StateApplied        State = "applied"
	StateShortlisted    State = "shortlisted"
	StateInvited        State = "invited"
	StateInviteAccepted State = "invite_accepted"
	StateInviteRejected State = "invite_rejected"
	StateAuditionDone   State = "audition_done"
	StateAccepted       State = "accepted"
	StateRejected       State = "rejected"
	StateOnHold         State = "on_hold"
	StateJobClosed      State = "job_closed"
)

func (s State) String() string { return string(s) }

// Valid reports whether s belongs to the lifecycle.
func (s State) Valid() bool { return lifecycle.Contains(s) }

// ParseState converts a wire value into a State.
func ParseState(v string) (State, error) {
	s := State(v)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownState, v)
	}
	return s, nil
}

// Transition names a guarded move between states.
type Transition string

const (
	TransitionApply                      Transition = "apply"
	TransitionPipeline                   Transition = "pipeline"
	TransitionIgnore                     Transition = "ignore"
	TransitionDirectInvite               Transition = "direct_invite"
	TransitionShortlist                  Transition = "shortlist"
	TransitionInvite                     Transition = "invite"
	TransitionAcceptInvite               Transition = "accept_invite"
	TransitionRejectInvite               Transition = "reject_invite"
	TransitionTerminateAfterInviteReject Transition = "terminate_after_invite_reject"
	TransitionCompleteAudition           Transition = "complete_audition"
	TransitionAcceptCandidate            Transition = "accept_candidate"
	TransitionRejectCandidate            Transition = "reject_candidate"
	TransitionHoldCandidate              Transition = "hold_candidate"
	TransitionCloseJob                   Transition = "close_job"
	TransitionAgentReject                Transition = "agent_reject"
)

func (t Transition) String() string { return string(t) }

// CapabilityRejectCandidate guards shortlisting and agent rejection.
const CapabilityRejectCandidate = "application.can_reject_candidate"

type Graph = statemachine.Graph[State, Transition]
type Edge = statemachine.Edge[State, Transition]

var lifecycle = statemachine.MustNew[State, Transition](StateInitiated,
	statemachine.WithStates[State, Transition](
		StateInitiated, StatePipelined, StateIgnored, StateApplied, StateShortlisted,
		StateInvited, StateInviteAccepted, StateInviteRejected, StateAuditionDone,
		StateAccepted, StateRejected, StateOnHold, StateJobClosed,
	),
	statemachine.WithTerminal[State, Transition](StateAccepted, StateRejected, StateJobClosed),

	statemachine.WithEdge(TransitionApply, StateApplied,
		[]State{StateInitiated, StatePipelined, StateIgnored}),
	statemachine.WithEdge(TransitionPipeline, StatePipelined,
		[]State{StateInitiated}),
	statemachine.WithEdge(TransitionIgnore, StateIgnored,
		[]State{StateInitiated}),
	statemachine.WithEdge(TransitionDirectInvite, StateInvited,
		[]State{StateApplied, StateInitiated}),
	statemachine.WithEdge(TransitionShortlist, StateShortlisted,
		[]State{StateInitiated, StateApplied},
		statemachine.WithPermission(CapabilityRejectCandidate)),
	statemachine.WithEdge(TransitionInvite, StateInvited,
		[]State{StateShortlisted}),
	statemachine.WithEdge(TransitionAcceptInvite, StateInviteAccepted,
		[]State{StateInvited}),
	statemachine.WithEdge(TransitionRejectInvite, StateInviteRejected,
		[]State{StateInvited}),
	statemachine.WithEdge(TransitionTerminateAfterInviteReject, StateRejected,
		[]State{StateInviteRejected}),
	statemachine.WithEdge(TransitionCompleteAudition, StateAuditionDone,
		[]State{StateInviteAccepted}),
	statemachine.WithEdge(TransitionAcceptCandidate, StateAccepted,
		[]State{StateAuditionDone, StateOnHold}),
	statemachine.WithEdge(TransitionRejectCandidate, StateRejected,
		[]State{StateAuditionDone, StateOnHold}),
	statemachine.WithEdge(TransitionHoldCandidate, StateOnHold,
		[]State{StateAuditionDone}),
	statemachine.WithEdge(TransitionCloseJob, StateJobClosed,
		[]State{
			StateIgnored, StatePipelined, StateInvited, StateApplied, StateShortlisted,
			StateInviteAccepted, StateInviteRejected, StateOnHold, StateAuditionDone,
		}),
	statemachine.WithEdge(TransitionAgentReject, StateRejected,
		[]State{
			StateInitiated, StateApplied, StateShortlisted, StateInvited,
			StateInviteAccepted, StateAuditionDone, StateOnHold,
		},
		statemachine.WithPermission(CapabilityRejectCandidate)),
)

// Lifecycle returns the application state graph.
func Lifecycle() *Graph { return lifecycle }
