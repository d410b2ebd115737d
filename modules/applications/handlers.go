package applications

import (
	"github.com/google/uuid"

	"github.com/stageroute/castflow/handler"
	"github.com/stageroute/castflow/svc/application"
)

type actRequest struct {
	JobID   uuid.UUID `path:"jobID" json:"-"`
	ActorID uuid.UUID `header:"X-Actor-ID" json:"-"`
	Action  string    `json:"action"`
}

func (m *Module) act(ctx handler.Context, req actRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	res, err := m.svc.Act(ctx, req.JobID, req.ActorID, req.Action)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(res)
}

type listRequest struct {
	JobID   uuid.UUID `path:"jobID" json:"-"`
	ActorID uuid.UUID `header:"X-Actor-ID" json:"-"`
}

func (m *Module) list(ctx handler.Context, req listRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	apps, err := m.svc.ListByJob(ctx, req.JobID)
	if err != nil {
		return m.fail(ctx, err)
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return handler.JSON(apps, handler.WithMeta(map[string]any{"total": len(apps)}))
}

type bulkByUsersRequest struct {
	JobID       uuid.UUID           `path:"jobID" json:"-"`
	ActorID     uuid.UUID           `header:"X-Actor-ID" json:"-"`
	UserIDs     []uuid.UUID         `json:"user_ids"`
	TargetState string              `json:"target_state"`
	Payload     application.Payload `json:"payload"`
}

func (m *Module) bulkByUsers(ctx handler.Context, req bulkByUsersRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	report, err := m.svc.BulkTransitionByUsers(ctx, application.BulkUsersRequest{
		JobID:       req.JobID,
		UserIDs:     req.UserIDs,
		TargetState: req.TargetState,
		ActorID:     req.ActorID,
		Payload:     req.Payload,
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(report)
}

type bulkByApplicationRequest struct {
	ActorID uuid.UUID              `header:"X-Actor-ID" json:"-"`
	Items   []application.BulkItem `json:"items"`
}

func (m *Module) bulkByApplication(ctx handler.Context, req bulkByApplicationRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	report, err := m.svc.BulkTransitionByApplication(ctx, req.Items, req.ActorID)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(report, handler.WithMeta(map[string]any{"failed": report.Failed()}))
}

type applicationRequest struct {
	ID      uuid.UUID `path:"id" json:"-"`
	ActorID uuid.UUID `header:"X-Actor-ID" json:"-"`
}

type applicationView struct {
	Application        application.Application  `json:"application"`
	AllowedTransitions []application.Transition `json:"allowed_transitions"`
}

func (m *Module) get(ctx handler.Context, req applicationRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	app, err := m.svc.Get(ctx, req.ID)
	if err != nil {
		return m.fail(ctx, err)
	}
	allowed, err := m.svc.AllowedTransitions(ctx, req.ID)
	if err != nil {
		return m.fail(ctx, err)
	}
	if allowed == nil {
		allowed = []application.Transition{}
	}
	return handler.JSON(applicationView{Application: app, AllowedTransitions: allowed})
}

func (m *Module) invites(ctx handler.Context, req applicationRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	invites, err := m.svc.Invites(ctx, req.ID)
	if err != nil {
		return m.fail(ctx, err)
	}
	if invites == nil {
		invites = []application.AuditionInvite{}
	}
	return handler.JSON(invites)
}

func (m *Module) redispatch(ctx handler.Context, req applicationRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	disp, err := m.svc.Redispatch(ctx, req.ID)
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(disp)
}

type transitionRequest struct {
	ID               uuid.UUID              `path:"id" json:"-"`
	ActorID          uuid.UUID              `header:"X-Actor-ID" json:"-"`
	Transition       application.Transition `json:"transition"`
	ExpectedRevision int64                  `json:"expected_revision"`
	Payload          application.Payload    `json:"payload"`
}

func (m *Module) transition(ctx handler.Context, req transitionRequest) handler.Response {
	if req.ActorID == uuid.Nil {
		return handler.JSONError(errMissingActor)
	}
	res, err := m.svc.Transition(ctx, application.TransitionRequest{
		ApplicationID:    req.ID,
		Transition:       req.Transition,
		ActorID:          req.ActorID,
		Payload:          req.Payload,
		ExpectedRevision: req.ExpectedRevision,
	})
	if err != nil {
		return m.fail(ctx, err)
	}
	return handler.JSON(res)
}
