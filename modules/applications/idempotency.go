package applications

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stageroute/castflow/handler"
	"github.com/stageroute/castflow/pkg/idempotency"
	"github.com/stageroute/castflow/pkg/logger"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
	maxReplayBodySize       = 1 << 20
)

// IdempotencyStore keeps replayable responses and guards in-flight keys.
type IdempotencyStore interface {
	idempotency.Locker
	idempotency.Store
}

var (
	errKeyReused = &handler.HTTPError{
		Status:  http.StatusUnprocessableEntity,
		Code:    "idempotency_key_reused",
		Message: "Idempotency-Key was already used with a different request",
	}
	errKeyInFlight = &handler.HTTPError{
		Status:  http.StatusConflict,
		Code:    "request_in_progress",
		Message: "a request with this Idempotency-Key is still being processed",
	}
	errKeyInvalid = &handler.HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_idempotency_key",
		Message: "Idempotency-Key is too long",
	}
)

// replay serves stored responses for repeated POST requests. Keys are scoped
// to the actor so two callers cannot collide. Only responses below 500 are
// stored; a failed request may be retried with the same key. The response is
// saved and the lock released even when the client has gone away.
func (m *Module) replay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotencyKey)
		if r.Method != http.MethodPost || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			_ = handler.JSONError(errKeyInvalid).Render(w, r)
			return
		}

		ctx := r.Context()
		body, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBodySize+1))
		if err != nil {
			_ = handler.JSONError(err).Render(w, r)
			return
		}
		if len(body) > maxReplayBodySize {
			_ = handler.JSONError(&handler.HTTPError{Status: http.StatusRequestEntityTooLarge, Code: "body_too_large"}).Render(w, r)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		actor := r.Header.Get("X-Actor-ID")
		scoped := actor + ":" + key
		hash := idempotency.Fingerprint([]byte(r.Method), []byte(r.URL.Path), []byte(actor), body)

		rec, err := m.idempotency.Load(ctx, scoped)
		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "idempotency lookup failed", logger.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if rec != nil {
			writeRecord(w, r, rec, hash)
			return
		}

		acquired, err := m.idempotency.Acquire(ctx, "http:"+scoped, m.lockTTL)
		if err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "idempotency lock failed", logger.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !acquired {
			_ = handler.JSONError(errKeyInFlight).Render(w, r)
			return
		}
		detached := context.WithoutCancel(ctx)
		defer func() {
			if err := m.idempotency.Release(detached, "http:"+scoped); err != nil {
				m.logger.LogAttrs(detached, slog.LevelWarn, "idempotency release failed", logger.Error(err))
			}
		}()

		cw := &capturingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)
		if cw.status >= http.StatusInternalServerError {
			return
		}

		err = m.idempotency.Save(detached, idempotency.Record{
			Key:         scoped,
			RequestHash: hash,
			StatusCode:  cw.status,
			Body:        cw.body.Bytes(),
		}, m.keyTTL)
		if err != nil && !errors.Is(err, idempotency.ErrRecordExists) {
			m.logger.LogAttrs(detached, slog.LevelWarn, "idempotency save failed", logger.Error(err))
		}
	})
}

func writeRecord(w http.ResponseWriter, r *http.Request, rec *idempotency.Record, hash string) {
	if rec.RequestHash != hash {
		_ = handler.JSONError(errKeyReused).Render(w, r)
		return
	}
	w.Header().Set(HeaderReplayed, strconv.FormatBool(true))
	if len(rec.Body) > 0 {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(rec.StatusCode)
	_, _ = w.Write(rec.Body)
}

type capturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *capturingWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *capturingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}
