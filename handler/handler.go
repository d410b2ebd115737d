// Package handler turns typed request handlers into http.HandlerFunc values.
//
//	h := handler.HandlerFunc[getRequest](func(ctx handler.Context, req getRequest) handler.Response {
//	    app, err := svc.Get(ctx, req.ID)
//	    if err != nil {
//	        return handler.JSONError(err)
//	    }
//	    return handler.JSON(app)
//	})
//	r.Get("/applications/{id}", handler.Wrap(h, handler.WithBinders(binder.Path())))
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stageroute/castflow/pkg/binder"
)

var ErrNilResponse = errors.New("handler.nil_response")

// Context is the request context handed to handlers.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

type httpContext struct {
	w http.ResponseWriter
	r *http.Request
}

func NewContext(w http.ResponseWriter, r *http.Request) Context { return &httpContext{w: w, r: r} }

func (c *httpContext) Request() *http.Request              { return c.r }
func (c *httpContext) ResponseWriter() http.ResponseWriter { return c.w }
func (c *httpContext) Deadline() (time.Time, bool)         { return c.r.Context().Deadline() }
func (c *httpContext) Done() <-chan struct{}               { return c.r.Context().Done() }
func (c *httpContext) Err() error                          { return c.r.Context().Err() }
func (c *httpContext) Value(key any) any                   { return c.r.Context().Value(key) }

// Response renders itself.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

type HandlerFunc[R any] func(ctx Context, req R) Response

// ErrorHandler renders binding and rendering failures.
type ErrorHandler func(ctx Context, err error)

type wrapConfig struct {
	binders      []binder.Func
	errorHandler ErrorHandler
}

type WrapOption func(*wrapConfig)

// WithBinders applies binders in order. Binders returning
// binder.ErrBinderNotApplicable are skipped.
func WithBinders(binders ...binder.Func) WrapOption {
	return func(c *wrapConfig) { c.binders = append(c.binders, binders...) }
}

func WithErrorHandler(h ErrorHandler) WrapOption {
	return func(c *wrapConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// DefaultErrorHandler answers with a JSON error envelope. Binding failures
// are 400.
func DefaultErrorHandler(ctx Context, err error) {
	resp := JSONError(err)
	if IsBindError(err) {
		resp = JSONError(err, WithStatus(http.StatusBadRequest), WithCode("bad_request"))
	}
	_ = resp.Render(ctx.ResponseWriter(), ctx.Request())
}

// IsBindError reports whether err came from a request binder.
func IsBindError(err error) bool {
	for _, target := range []error{
		binder.ErrFailedToParseJSON, binder.ErrFailedToParsePath, binder.ErrFailedToParseHeader,
		binder.ErrMissingContentType, binder.ErrUnsupportedMediaType,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func Wrap[R any](h HandlerFunc[R], opts ...WrapOption) http.HandlerFunc {
	cfg := &wrapConfig{errorHandler: DefaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := NewContext(w, r)

		var req R
		for _, bind := range cfg.binders {
			if err := bind(r, &req); err != nil {
				if errors.Is(err, binder.ErrBinderNotApplicable) {
					continue
				}
				cfg.errorHandler(ctx, err)
				return
			}
		}

		resp := h(ctx, req)
		if resp == nil {
			cfg.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := resp.Render(w, r); err != nil {
			cfg.errorHandler(ctx, err)
		}
	}
}
