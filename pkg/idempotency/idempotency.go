// Package idempotency provides short-lived locks and response records keyed by
// caller-chosen idempotency keys. Locks keep two workers from running the same
// side-effect dispatch at once; records let a retried HTTP request replay the
// first response instead of executing twice.
//
// Two backends are provided: an in-process memory store for tests and single
// instance deployments, and a Redis store for multiple replicas.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	ErrRecordExists = errors.New("idempotency: record already exists")
	ErrEmptyKey     = errors.New("idempotency: empty key")
)

// Locker grants exclusive, expiring ownership of a key.
type Locker interface {
	// Acquire returns false when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Record is a stored response for a completed request.
type Record struct {
	Key         string    `json:"key"`
	RequestHash string    `json:"request_hash"`
	StatusCode  int       `json:"status_code"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists records. Save fails with ErrRecordExists when key is taken.
type Store interface {
	Load(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, rec Record, ttl time.Duration) error
}

// Fingerprint hashes request parts so a reused key with a different body can be detected.
func Fingerprint(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
