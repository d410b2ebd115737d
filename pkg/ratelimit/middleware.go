package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stageroute/castflow/pkg/logger"
)

// KeyFunc picks the counter for a request. An empty key skips limiting.
type KeyFunc func(*http.Request) string

// ByHeader keys requests by a header value under scope.
func ByHeader(scope, header string) KeyFunc {
	return func(r *http.Request) string {
		v := r.Header.Get(header)
		if v == "" {
			return ""
		}
		return scope + ":" + v
	}
}

// Middleware enforces l. Store failures let the request through.
func Middleware(l *Limiter, key KeyFunc, log *slog.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			res, err := l.Allow(r.Context(), k)
			if err != nil {
				log.LogAttrs(r.Context(), slog.LevelWarn, "rate limit check failed", logger.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.Itoa(max(int(res.RetryAfter(time.Now()).Seconds()), 1)))
			h.Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}` + "\n"))
		})
	}
}
