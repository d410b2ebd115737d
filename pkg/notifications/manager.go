package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/logger"
)

// Manager stores notifications and then delivers them.
type Manager struct {
	storage   Storage
	deliverer Deliverer
	logger    *slog.Logger
	now       func() time.Time
}

type ManagerOption func(*Manager)

func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager. A nil deliverer only stores.
func NewManager(storage Storage, deliverer Deliverer, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage:   storage,
		deliverer: deliverer,
		logger:    logger.Discard(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Send stores n and attempts delivery. Only a storage failure is returned;
// delivery failures are logged.
func (m *Manager) Send(ctx context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = m.now()
	}

	if err := m.storage.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	if m.deliverer == nil {
		return nil
	}
	if err := m.deliverer.Deliver(ctx, n); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "notification stored but not delivered",
			slog.String("notification_id", n.ID.String()),
			logger.UserID(n.UserID),
			logger.Error(err),
		)
	}
	return nil
}

func (m *Manager) List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	return m.storage.List(ctx, userID, opts)
}

func (m *Manager) MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	return m.storage.MarkRead(ctx, userID, ids...)
}
