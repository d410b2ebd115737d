package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stageroute/castflow/pkg/notifications"
)

// Notifications implements notifications.Storage.
type Notifications struct {
	db DB
}

func (s *Notifications) Create(ctx context.Context, n notifications.Notification) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, channel, message, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Channel, n.Message, n.Data, n.Read, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *Notifications) List(ctx context.Context, userID uuid.UUID, opts notifications.ListOptions) ([]notifications.Notification, error) {
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, channel, message, data, read, created_at FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id
		LIMIT $3`, userID, opts.OnlyUnread, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (notifications.Notification, error) {
		var n notifications.Notification
		err := row.Scan(&n.ID, &n.UserID, &n.Channel, &n.Message, &n.Data, &n.Read, &n.CreatedAt)
		return n, err
	})
}

func (s *Notifications) MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	if tag.RowsAffected() < int64(len(ids)) {
		return notifications.ErrNotificationNotFound
	}
	return nil
}
