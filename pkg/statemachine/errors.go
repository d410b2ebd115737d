package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTransition = errors.New("statemachine: unknown transition")
	ErrInvalidGraph      = errors.New("statemachine: invalid graph definition")
)

// ErrNoTransitionAvailable indicates the transition exists but cannot fire from the given state.
type ErrNoTransitionAvailable struct {
	StateName  string
	EventName  string
	TargetName string
}

func (e *ErrNoTransitionAvailable) Error() string {
	return fmt.Sprintf("no transition available from state '%s' to '%s' for event '%s'",
		e.StateName, e.TargetName, e.EventName)
}

func NewErrNoTransitionAvailable(stateName, eventName, targetName string) *ErrNoTransitionAvailable {
	return &ErrNoTransitionAvailable{
		StateName:  stateName,
		EventName:  eventName,
		TargetName: targetName,
	}
}

func IsNoTransitionAvailableError(err error) bool {
	var e *ErrNoTransitionAvailable
	return errors.As(err, &e)
}

func invalidGraph(format string, args ...any) error {
	return errors.Join(ErrInvalidGraph, fmt.Errorf(format, args...))
}
