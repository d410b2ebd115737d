package applications

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/stageroute/castflow/handler"
	"github.com/stageroute/castflow/pkg/logger"
	"github.com/stageroute/castflow/svc/application"
)

var errMissingActor = &handler.HTTPError{
	Status:  http.StatusUnauthorized,
	Code:    "missing_actor",
	Message: "X-Actor-ID header is required",
}

var kindStatus = map[application.ErrorKind]int{
	application.KindValidation:             http.StatusUnprocessableEntity,
	application.KindUnknownTransition:      http.StatusBadRequest,
	application.KindPermissionDenied:       http.StatusForbidden,
	application.KindNotFound:               http.StatusNotFound,
	application.KindIllegalTransition:      http.StatusConflict,
	application.KindConcurrentModification: http.StatusConflict,
	application.KindSideEffectFailed:       http.StatusInternalServerError,
	application.KindInternal:               http.StatusInternalServerError,
}

// toHTTPError maps a lifecycle error onto a status and code. Internal errors
// keep their message out of the response.
func toHTTPError(err error) *handler.HTTPError {
	kind := application.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	httpErr := &handler.HTTPError{Status: status, Code: string(kind), Message: err.Error(), Err: err}
	if kind == application.KindInternal {
		httpErr.Message = "internal error"
	}

	var verr *application.ValidationError
	if errors.As(err, &verr) {
		if fields := verr.Fields(); len(fields) > 0 {
			httpErr.Details = make(map[string][]string, len(fields))
			for _, f := range fields {
				httpErr.Details[f.Field] = append(httpErr.Details[f.Field], f.Message)
			}
		}
	}
	return httpErr
}

func (m *Module) fail(ctx handler.Context, err error) handler.Response {
	httpErr := toHTTPError(err)
	if httpErr.Status >= http.StatusInternalServerError {
		m.logger.LogAttrs(ctx, slog.LevelError, "request failed",
			slog.String("path", ctx.Request().URL.Path), logger.Error(err))
	}
	return handler.JSONError(httpErr)
}

// renderError handles failures raised outside a handler body.
func (m *Module) renderError(ctx handler.Context, err error) {
	if !handler.IsBindError(err) {
		m.logger.LogAttrs(ctx, slog.LevelError, "request failed",
			slog.String("path", ctx.Request().URL.Path), logger.Error(err))
	}
	handler.DefaultErrorHandler(ctx, err)
}
