package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/async"
	"github.com/stageroute/castflow/pkg/logger"
	"github.com/stageroute/castflow/pkg/validator"
)

// BulkItem asks for one application to be moved to TargetState.
type BulkItem struct {
	ApplicationID uuid.UUID `json:"application_id"`
	TargetState   string    `json:"target_state"`
	Payload       Payload   `json:"payload,omitzero"`
}

// ItemResult is the outcome for one BulkItem.
type ItemResult struct {
	ApplicationID uuid.UUID
	UserID        uuid.UUID
	Err           error
}

func (r ItemResult) MarshalJSON() ([]byte, error) {
	if r.Err == nil {
		return json.Marshal("success")
	}
	out := struct {
		Error  string    `json:"error"`
		Kind   ErrorKind `json:"kind"`
		UserID uuid.UUID `json:"user_id,omitzero"`
	}{r.Err.Error(), Kind(r.Err), r.UserID}
	return json.Marshal(out)
}

// BulkReport holds one result per distinct application, in input order.
// It encodes as a JSON object keyed by application id.
type BulkReport struct {
	Results []ItemResult
}

// Get returns the result for an application.
func (r BulkReport) Get(id uuid.UUID) (ItemResult, bool) {
	for _, res := range r.Results {
		if res.ApplicationID == id {
			return res, true
		}
	}
	return ItemResult{}, false
}

// Failed counts items that did not succeed.
func (r BulkReport) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

func (r BulkReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, res := range r.Results {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(res.ApplicationID.String())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BulkUsersRequest moves the applications of UserIDs on JobID to TargetState,
// creating applications that do not exist yet.
type BulkUsersRequest struct {
	JobID       uuid.UUID
	UserIDs     []uuid.UUID
	TargetState string
	ActorID     uuid.UUID
	Payload     Payload
}

type UserError struct {
	Detail string    `json:"detail"`
	Kind   ErrorKind `json:"kind"`
	UserID uuid.UUID `json:"user_id"`
}

type UserSuccess struct {
	ApplicationID uuid.UUID `json:"application_id"`
	UserID        uuid.UUID `json:"user_id"`
}

// UsersReport lists per-user outcomes, each list in input order.
type UsersReport struct {
	Errors  []UserError   `json:"errors"`
	Success []UserSuccess `json:"success"`
}

// bulkUserTargets are the states a job owner may move a set of users into.
var bulkUserTargets = []State{StateShortlisted, StateInvited, StateRejected}

const (
	bulkModeApplications = "applications"
	bulkModeUsers        = "users"
)

// Coordinator drives the engine over many items. Items are independent:
// one failure never stops the rest.
type Coordinator struct {
	engine      *Engine
	repo        Repository
	perms       PermissionChecker
	directory   Directory
	concurrency int
	attempts    int
	backoff     Backoff
	logger      *slog.Logger
	metrics     *Metrics
}

func newCoordinator(c Collaborators, e *Engine, cfg *options) *Coordinator {
	return &Coordinator{
		engine:      e,
		repo:        c.Repository,
		perms:       c.Permissions,
		directory:   c.Directory,
		concurrency: cfg.bulkConcurrency,
		attempts:    cfg.retryAttempts,
		backoff:     cfg.backoff,
		logger:      cfg.logger,
		metrics:     cfg.metrics,
	}
}

// BulkTransitionByApplication moves each application to its requested state.
// Repeated application ids are processed once, at their first position.
func (c *Coordinator) BulkTransitionByApplication(ctx context.Context, items []BulkItem, actorID uuid.UUID) (BulkReport, error) {
	if len(items) == 0 {
		return BulkReport{}, ErrEmptyBatch
	}

	seen := make(map[uuid.UUID]bool, len(items))
	unique := make([]BulkItem, 0, len(items))
	for _, item := range items {
		if seen[item.ApplicationID] {
			continue
		}
		seen[item.ApplicationID] = true
		unique = append(unique, item)
	}

	type outcome struct {
		res ItemResult
		ran bool
	}
	outcomes := async.Map(ctx, unique, c.concurrency, func(ctx context.Context, _ int, item BulkItem) outcome {
		res := c.applyItem(ctx, item, actorID)
		c.metrics.bulkItem(bulkModeApplications, res.Err)
		return outcome{res: res, ran: true}
	})

	results := make([]ItemResult, len(unique))
	for i, out := range outcomes {
		if !out.ran {
			out.res = ItemResult{ApplicationID: unique[i].ApplicationID, Err: ctx.Err()}
		}
		results[i] = out.res
	}

	report := BulkReport{Results: results}
	c.logger.LogAttrs(ctx, slog.LevelInfo, "bulk transition by application finished",
		logger.ActorID(actorID),
		logger.Count("items", len(results)),
		logger.Count("failed", report.Failed()),
	)
	return report, nil
}

func (c *Coordinator) applyItem(ctx context.Context, item BulkItem, actorID uuid.UUID) ItemResult {
	res := ItemResult{ApplicationID: item.ApplicationID}
	res.Err = RetryOnConflict(ctx, c.attempts, c.backoff, func(ctx context.Context) error {
		app, err := c.repo.Get(ctx, item.ApplicationID)
		if err != nil {
			return err
		}
		res.UserID = app.UserID

		target, err := ParseState(item.TargetState)
		if err != nil {
			return &ValidationError{Err: errors.Join(err, validator.ValidationErrors{
				{Field: "target_state", Message: "unknown state", TranslationKey: "validation.in_list"},
			})}
		}
		name, err := resolveTransition(app.State, target)
		if err != nil {
			return err
		}
		_, err = c.engine.Transition(ctx, TransitionRequest{
			ApplicationID: app.ID,
			Transition:    name,
			ActorID:       actorID,
			Payload:       item.Payload,
		})
		return err
	})
	return res
}

// resolveTransition picks the transition that moves from into target: the
// first declared edge into target whose sources include from. When no edge
// fits, the first edge into target is returned so the engine reports the
// illegal move with full context.
func resolveTransition(from, target State) (Transition, error) {
	if from == StateApplied && target == StateInvited {
		return TransitionDirectInvite, nil
	}
	edges := lifecycle.EdgesTo(target)
	if len(edges) == 0 {
		return "", fieldError("target_state", fmt.Sprintf("no transition leads to %q", target))
	}
	for _, e := range edges {
		if e.AllowsFrom(from) {
			return e.Event, nil
		}
	}
	return edges[0].Event, nil
}

// BulkTransitionByUsers moves the applications of many users on one job.
// An empty user list, a target outside shortlisted, invited and rejected,
// or an unknown job fail the whole call. A missing capability is reported
// once per user.
func (c *Coordinator) BulkTransitionByUsers(ctx context.Context, req BulkUsersRequest) (UsersReport, error) {
	if len(req.UserIDs) == 0 {
		return UsersReport{}, ErrEmptyBatch
	}
	target := State(req.TargetState)
	if !slices.Contains(bulkUserTargets, target) {
		return UsersReport{}, &ValidationError{Err: errors.Join(ErrUnknownState, validator.ValidationErrors{{
			Field:          "target_state",
			Message:        fmt.Sprintf("must be one of: %v", bulkUserTargets),
			TranslationKey: "validation.in_list",
		}})}
	}
	if _, err := c.directory.Job(ctx, req.JobID); err != nil {
		return UsersReport{}, err
	}

	report := UsersReport{Errors: []UserError{}, Success: []UserSuccess{}}

	allowed, err := c.perms.HasCapability(ctx, req.ActorID, CapabilityRejectCandidate)
	if err != nil {
		return UsersReport{}, fmt.Errorf("check capability %q: %w", CapabilityRejectCandidate, err)
	}
	if !allowed {
		for _, userID := range req.UserIDs {
			denied := &PermissionDeniedError{Capability: CapabilityRejectCandidate, ActorID: req.ActorID}
			report.Errors = append(report.Errors, UserError{Detail: denied.Error(), Kind: Kind(denied), UserID: userID})
			c.metrics.bulkItem(bulkModeUsers, denied)
		}
		return report, nil
	}

	type outcome struct {
		app Application
		err error
		ran bool
	}
	outcomes := async.Map(ctx, req.UserIDs, c.concurrency, func(ctx context.Context, _ int, userID uuid.UUID) outcome {
		out := outcome{ran: true}
		out.err = RetryOnConflict(ctx, c.attempts, c.backoff, func(ctx context.Context) error {
			app, _, err := c.repo.GetOrCreate(ctx, req.JobID, userID)
			if err != nil {
				return err
			}
			res, err := c.engine.Transition(ctx, TransitionRequest{
				ApplicationID: app.ID,
				Transition:    usersTransition(app.State, target),
				ActorID:       req.ActorID,
				Payload:       req.Payload,
			})
			out.app = res.Application
			if out.app.ID == uuid.Nil {
				out.app = app
			}
			return err
		})
		c.metrics.bulkItem(bulkModeUsers, out.err)
		return out
	})

	for i, userID := range req.UserIDs {
		out := outcomes[i]
		if !out.ran {
			out.err = ctx.Err()
		}
		if out.err != nil {
			report.Errors = append(report.Errors, UserError{Detail: out.err.Error(), Kind: Kind(out.err), UserID: userID})
			continue
		}
		report.Success = append(report.Success, UserSuccess{ApplicationID: out.app.ID, UserID: userID})
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "bulk transition by users finished",
		logger.JobID(req.JobID),
		logger.ActorID(req.ActorID),
		logger.State(string(target)),
		logger.Count("succeeded", len(report.Success)),
		logger.Count("failed", len(report.Errors)),
	)
	return report, nil
}

func usersTransition(from, target State) Transition {
	switch target {
	case StateRejected:
		return TransitionAgentReject
	case StateShortlisted:
		return TransitionShortlist
	default:
		if from == StateShortlisted {
			return TransitionInvite
		}
		return TransitionDirectInvite
	}
}
