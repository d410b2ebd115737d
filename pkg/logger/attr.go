package logger

import (
	"log/slog"
	"time"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Error records err under the key "error". A nil error yields an empty Attr,
// which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
func UserID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("user_id", id)
}

// ActorID records who triggered an operation under the key "actor_id".
func ActorID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("actor_id", id)
}

// JobID records the job identifier under the key "job_id".
func JobID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("job_id", id)
}

// ApplicationID records the application identifier under the key "application_id".
func ApplicationID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("application_id", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("request_id", id)
}

// Transition records a transition name.
func Transition(name string) slog.Attr {
	return slog.String("transition", name)
}

// State records a lifecycle state.
func State(name string) slog.Attr {
	return slog.String("state", name)
}

// Revision records an optimistic concurrency revision.
func Revision(rev int64) slog.Attr {
	return slog.Int64("revision", rev)
}

// Effect records a side-effect name.
func Effect(name string) slog.Attr {
	return slog.String("effect", name)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

func Count(name string, n int) slog.Attr {
	return slog.Int(name, n)
}
