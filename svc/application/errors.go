package application

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/statemachine"
	"github.com/stageroute/castflow/pkg/validator"
)

var (
	ErrUnknownTransition      = errors.New("application.unknown_transition")
	ErrUnknownState           = errors.New("application.unknown_state")
	ErrApplicationNotFound    = errors.New("application.not_found")
	ErrConcurrentModification = errors.New("application.concurrent_modification")
	ErrEmptyBatch             = errors.New("application.empty_batch")
	ErrInsufficientTokens     = errors.New("application.insufficient_tokens")
	ErrJobNotFound            = errors.New("application.job_not_found")
	ErrUserNotFound           = errors.New("application.user_not_found")
	ErrInviteNotFound         = errors.New("application.invite_not_found")
	ErrDispatchNotFound       = errors.New("application.dispatch_not_found")
	ErrDispatchInProgress     = errors.New("application.dispatch_in_progress")
)

// IllegalTransitionError reports a transition fired from a state outside its sources.
type IllegalTransitionError struct {
	From       State
	To         State
	Transition Transition
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %q from %q to %q", e.Transition, e.From, e.To)
}

// Unwrap lets callers match the generic graph error as well.
func (e *IllegalTransitionError) Unwrap() error {
	return statemachine.NewErrNoTransitionAvailable(string(e.From), string(e.Transition), string(e.To))
}

// PermissionDeniedError reports a missing capability.
type PermissionDeniedError struct {
	Capability string
	ActorID    uuid.UUID
	Transition Transition
}

func (e *PermissionDeniedError) Error() string {
	if e.Transition == "" {
		return fmt.Sprintf("actor %s lacks capability %q", e.ActorID, e.Capability)
	}
	return fmt.Sprintf("actor %s lacks capability %q required by %q", e.ActorID, e.Capability, e.Transition)
}

// ValidationError wraps invalid caller input. The state is never changed when it is returned.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	if fields := e.Fields(); len(fields) > 0 {
		return fields.Error()
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Fields returns per-field failures when available.
func (e *ValidationError) Fields() validator.ValidationErrors {
	return validator.ExtractValidationErrors(e.Err)
}

func newValidationError(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

const insufficientTokensMessage = "You don't have enough tokens to apply to this job."

func insufficientTokens() error {
	return &ValidationError{Err: errors.Join(
		ErrInsufficientTokens,
		validator.ValidationErrors{{Field: "tokens", Message: insufficientTokensMessage}},
	)}
}

func fieldError(field, message string) error {
	return &ValidationError{Err: validator.ValidationErrors{{Field: field, Message: message}}}
}

// SideEffectError reports a must-succeed effect that failed after the state
// change committed. RolledBack is true when the state was restored.
type SideEffectError struct {
	Effect     string
	RolledBack bool
	Err        error
}

func (e *SideEffectError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("side effect %q failed, transition rolled back: %v", e.Effect, e.Err)
	}
	return fmt.Sprintf("side effect %q failed, rollback did not apply: %v", e.Effect, e.Err)
}

func (e *SideEffectError) Unwrap() error { return e.Err }

func IsIllegalTransitionError(err error) bool {
	var e *IllegalTransitionError
	return errors.As(err, &e)
}

func IsPermissionDeniedError(err error) bool {
	var e *PermissionDeniedError
	return errors.As(err, &e)
}

func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

func IsSideEffectError(err error) bool {
	var e *SideEffectError
	return errors.As(err, &e)
}

// ErrorKind classifies errors for reports and transport mapping.
type ErrorKind string

const (
	KindValidation             ErrorKind = "validation"
	KindPermissionDenied       ErrorKind = "permission_denied"
	KindIllegalTransition      ErrorKind = "illegal_transition"
	KindUnknownTransition      ErrorKind = "unknown_transition"
	KindConcurrentModification ErrorKind = "concurrent_modification"
	KindSideEffectFailed       ErrorKind = "side_effect_failed"
	KindNotFound               ErrorKind = "not_found"
	KindInternal               ErrorKind = "internal"
)

// Kind classifies err. A nil error has an empty kind.
func Kind(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case IsSideEffectError(err):
		return KindSideEffectFailed
	case IsValidationError(err), errors.Is(err, ErrUnknownState), errors.Is(err, ErrEmptyBatch):
		return KindValidation
	case IsPermissionDeniedError(err):
		return KindPermissionDenied
	case IsIllegalTransitionError(err):
		return KindIllegalTransition
	case errors.Is(err, ErrUnknownTransition):
		return KindUnknownTransition
	case errors.Is(err, ErrConcurrentModification):
		return KindConcurrentModification
	case errors.Is(err, ErrApplicationNotFound), errors.Is(err, ErrJobNotFound),
		errors.Is(err, ErrUserNotFound), errors.Is(err, ErrDispatchNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}
