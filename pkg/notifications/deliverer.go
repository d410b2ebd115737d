package notifications

import (
	"context"
	"errors"
	"log/slog"

	"github.com/stageroute/castflow/pkg/logger"
)

// Deliverer pushes a stored notification to the user in real time.
type Deliverer interface {
	Deliver(ctx context.Context, n Notification) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, n Notification) error

func (f DelivererFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// MultiDeliverer fans a notification out to several deliverers and joins their errors.
type MultiDeliverer []Deliverer

func (m MultiDeliverer) Deliver(ctx context.Context, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Deliver(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ChannelDeliverer routes notifications to a deliverer per channel.
// Channels without a deliverer are skipped.
type ChannelDeliverer map[Channel]Deliverer

func (c ChannelDeliverer) Deliver(ctx context.Context, n Notification) error {
	if d, ok := c[n.Channel]; ok {
		return d.Deliver(ctx, n)
	}
	return nil
}

// LogDeliverer writes notifications to a logger. It stands in for a push
// gateway in development.
type LogDeliverer struct {
	log *slog.Logger
}

func NewLogDeliverer(log *slog.Logger) *LogDeliverer {
	if log == nil {
		log = logger.Discard()
	}
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, n Notification) error {
	d.log.LogAttrs(ctx, slog.LevelInfo, "notification delivered",
		slog.String("notification_id", n.ID.String()),
		logger.UserID(n.UserID),
		slog.String("channel", string(n.Channel)),
		slog.String("message", n.Message),
	)
	return nil
}
