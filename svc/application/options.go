package application

import (
	"log/slog"
	"time"

	"github.com/stageroute/castflow/pkg/logger"
)

type options struct {
	logger          *slog.Logger
	metrics         *Metrics
	now             func() time.Time
	lockTTL         time.Duration
	bulkConcurrency int
	retryAttempts   int
	backoff         Backoff
}

func defaultOptions() *options {
	return &options{
		logger:          logger.Discard(),
		now:             func() time.Time { return time.Now().UTC() },
		lockTTL:         30 * time.Second,
		bulkConcurrency: 1,
		retryAttempts:   1,
		backoff:         DefaultBackoff,
	}
}

// Option configures a Service.
type Option func(*options)

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records transition and effect metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithDispatchLockTTL bounds how long one worker may hold a dispatch before
// another may take it over.
func WithDispatchLockTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithBulkConcurrency processes up to n bulk items at once.
func WithBulkConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bulkConcurrency = n
		}
	}
}

// WithBulkRetry retries bulk items that lose a revision race up to attempts times.
func WithBulkRetry(attempts int, b Backoff) Option {
	return func(o *options) {
		if attempts > 0 {
			o.retryAttempts = attempts
			o.backoff = b
		}
	}
}
