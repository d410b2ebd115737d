// Package binder fills request structs from the JSON body, chi path
// parameters and headers.
//
//	type transitionRequest struct {
//	    ApplicationID uuid.UUID `path:"id"`
//	    ActorID       uuid.UUID `header:"X-Actor-ID"`
//	    Transition    string    `json:"transition"`
//	}
package binder

import (
	"encoding"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedMediaType = errors.New("binder.unsupported_media_type")
	ErrMissingContentType   = errors.New("binder.missing_content_type")
	ErrFailedToParseJSON    = errors.New("binder.invalid_json")
	ErrFailedToParsePath    = errors.New("binder.invalid_path_param")
	ErrFailedToParseHeader  = errors.New("binder.invalid_header")
	// ErrBinderNotApplicable lets a binder step aside for a request it does not handle.
	ErrBinderNotApplicable = errors.New("binder.not_applicable")
)

// Func binds part of r into v, a pointer to a struct.
type Func func(r *http.Request, v any) error

// bindTagged sets every field of v tagged with tag from lookup. Fields whose
// lookup is empty keep their zero value.
func bindTagged(v any, tag string, lookup func(name string) string, bindErr error) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w: target must be a pointer to struct", bindErr)
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := range rv.NumField() {
		field, sf := rv.Field(i), rt.Field(i)
		name, _, _ := strings.Cut(sf.Tag.Get(tag), ",")
		if name == "" || name == "-" || !field.CanSet() {
			continue
		}
		raw := lookup(name)
		if raw == "" {
			continue
		}
		if err := setField(field, raw); err != nil {
			return fmt.Errorf("%w: %s: %v", bindErr, name, err)
		}
	}
	return nil
}

func setField(field reflect.Value, raw string) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(raw))
		}
	}

	switch field.Kind() {
	case reflect.Pointer:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return setField(field.Elem(), raw)
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q", raw)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid bool %q", raw)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}
