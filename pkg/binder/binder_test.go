package binder_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageroute/castflow/pkg/binder"
)

type request struct {
	JobID    uuid.UUID `path:"jobID"`
	Page     int       `path:"page"`
	ActorID  uuid.UUID `header:"X-Actor-ID"`
	Dry      bool      `header:"X-Dry-Run"`
	Action   string    `json:"action"`
	Revision int64     `json:"expected_revision"`
}

func withRouteParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     error
		want        request
	}{
		{name: "valid", contentType: "application/json", body: `{"action":"applied","expected_revision":3}`, want: request{Action: "applied", Revision: 3}},
		{name: "charset param", contentType: "application/json; charset=utf-8", body: `{"action":"ignored"}`, want: request{Action: "ignored"}},
		{name: "no body", contentType: "application/json", wantErr: binder.ErrBinderNotApplicable},
		{name: "missing content type", body: `{}`, wantErr: binder.ErrMissingContentType},
		{name: "form content type", contentType: "application/x-www-form-urlencoded", body: `a=b`, wantErr: binder.ErrUnsupportedMediaType},
		{name: "unknown field", contentType: "application/json", body: `{"nope":1}`, wantErr: binder.ErrFailedToParseJSON},
		{name: "malformed", contentType: "application/json", body: `{"action":`, wantErr: binder.ErrFailedToParseJSON},
		{name: "trailing data", contentType: "application/json", body: `{"action":"a"}{"action":"b"}`, wantErr: binder.ErrFailedToParseJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.body == "" {
				r = httptest.NewRequest(http.MethodPost, "/", http.NoBody)
			}
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}

			var got request
			err := binder.JSON()(r, &got)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPathAndHeader(t *testing.T) {
	t.Parallel()
	jobID, actorID := uuid.New(), uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Actor-ID", actorID.String())
	r.Header.Set("X-Dry-Run", "true")
	r = withRouteParams(r, map[string]string{"jobID": jobID.String(), "page": "2"})

	var got request
	require.NoError(t, binder.Path()(r, &got))
	require.NoError(t, binder.Header()(r, &got))
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, actorID, got.ActorID)
	assert.True(t, got.Dry)

	bad := withRouteParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"jobID": "not-a-uuid"})
	require.ErrorIs(t, binder.Path()(bad, &request{}), binder.ErrFailedToParsePath)

	badHeader := httptest.NewRequest(http.MethodGet, "/", nil)
	badHeader.Header.Set("X-Actor-ID", "42")
	require.ErrorIs(t, binder.Header()(badHeader, &request{}), binder.ErrFailedToParseHeader)

	require.ErrorIs(t, binder.Header()(badHeader, request{}), binder.ErrFailedToParseHeader, "non-pointer target")
}
