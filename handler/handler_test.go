package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/handler"
	"github.com/stageroute/castflow/pkg/binder"
)

type echoRequest struct {
	Name string `json:"name"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	echo := handler.Wrap(handler.HandlerFunc[echoRequest](func(_ handler.Context, req echoRequest) handler.Response {
		if req.Name == "teapot" {
			return handler.JSONError(&handler.HTTPError{Status: http.StatusTeapot, Code: "teapot"})
		}
		if req.Name == "" {
			return handler.Empty()
		}
		return handler.JSON(map[string]string{"hello": req.Name}, handler.WithStatus(http.StatusCreated))
	}), handler.WithBinders(binder.JSON()))

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "created", body: `{"name":"cleo"}`, status: http.StatusCreated},
		{name: "typed error", body: `{"name":"teapot"}`, status: http.StatusTeapot, code: "teapot"},
		{name: "bind error", body: `{"name":`, status: http.StatusBadRequest, code: "bad_request"},
		{name: "no body skips the binder", status: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r *http.Request
			if tt.body == "" {
				r = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
			} else {
				r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
				r.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			echo(rec, r)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				body := decodeEnvelope(t, rec)
				require.NotNil(t, body.Error)
				assert.Equal(t, tt.code, body.Error.Code)
			}
		})
	}
}

func TestWrap_NilResponse(t *testing.T) {
	t.Parallel()
	h := handler.Wrap(handler.HandlerFunc[struct{}](func(handler.Context, struct{}) handler.Response { return nil }))
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	wrapped := errors.Join(errors.New("context"), &handler.HTTPError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "validation_error",
		Message: "invalid payload",
		Details: map[string][]string{"title": {"required"}},
	})
	rec := httptest.NewRecorder()
	require.NoError(t, handler.JSONError(wrapped).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.Equal(t, []string{"required"}, body.Error.Details["title"])

	rec = httptest.NewRecorder()
	require.NoError(t, handler.JSONError(errors.New("boom")).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeEnvelope(t, rec).Error.Code)
}
