package binder

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Path binds fields tagged `path:"name"` from chi URL parameters.
func Path() Func {
	return func(r *http.Request, v any) error {
		return bindTagged(v, "path", func(name string) string {
			return chi.URLParam(r, name)
		}, ErrFailedToParsePath)
	}
}

// Header binds fields tagged `header:"Name"` from request headers.
func Header() Func {
	return func(r *http.Request, v any) error {
		return bindTagged(v, "header", r.Header.Get, ErrFailedToParseHeader)
	}
}
