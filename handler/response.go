package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// JSONResponse is the envelope every JSON body uses.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

// HTTPError carries a status and a machine-readable code.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Details map[string][]string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j *jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type Option func(*jsonResponse)

func WithStatus(status int) Option {
	return func(r *jsonResponse) { r.status = status }
}

func WithMeta(meta map[string]any) Option {
	return func(r *jsonResponse) { r.body.Meta = meta }
}

// WithCode overrides the error code of an error response.
func WithCode(code string) Option {
	return func(r *jsonResponse) {
		if r.body.Error != nil {
			r.body.Error.Code = code
		}
	}
}

// JSON wraps v in the data envelope with status 200.
func JSON(v any, opts ...Option) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err in the error envelope. An *HTTPError anywhere in the
// chain supplies status and code; anything else is a 500.
func JSONError(err error, opts ...Option) Response {
	r := &jsonResponse{
		status: http.StatusInternalServerError,
		body:   JSONResponse{Error: &ErrorDetail{Code: "internal_error", Message: err.Error()}},
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		r.status = httpErr.Status
		r.body.Error = &ErrorDetail{Code: httpErr.Code, Message: httpErr.Error(), Details: httpErr.Details}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// Empty answers 204.
func Empty() Response { return emptyResponse{status: http.StatusNoContent} }
