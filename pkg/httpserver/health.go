package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/stageroute/castflow/pkg/logger"
)

// HealthCheck verifies one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler runs every check and answers 200 with {"status":"ok"} when
// all pass. Failures answer 503 and list the failing checks by name.
func HealthHandler(log *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	if log == nil {
		log = logger.Discard()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		failed := map[string]string{}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				log.LogAttrs(r.Context(), slog.LevelError, "health check failed",
					slog.String("check", name), logger.Error(err))
				failed[name] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "unavailable", "failed": failed})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
