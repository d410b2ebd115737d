package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stageroute/castflow/pkg/email"
	"github.com/stageroute/castflow/pkg/notifications"
)

// EmailRenderer renders a named email template.
type EmailRenderer interface {
	Render(name string, data map[string]string) (string, error)
}

// ChannelNotifier implements Notifier on top of the notifications manager for
// push and in-app messages and an email sender for email.
type ChannelNotifier struct {
	notifications *notifications.Manager
	sender        email.Sender
	renderer      EmailRenderer
	directory     Directory
}

func NewChannelNotifier(m *notifications.Manager, sender email.Sender, renderer EmailRenderer, directory Directory) *ChannelNotifier {
	return &ChannelNotifier{notifications: m, sender: sender, renderer: renderer, directory: directory}
}

func (n *ChannelNotifier) SendPush(ctx context.Context, userID uuid.UUID, message string, metadata map[string]string) error {
	return n.notifications.Send(ctx, notifications.Notification{
		UserID:  userID,
		Channel: notifications.ChannelPush,
		Message: message,
		Data:    metadata,
	})
}

func (n *ChannelNotifier) SendInApp(ctx context.Context, userID uuid.UUID, message string, metadata map[string]string) error {
	return n.notifications.Send(ctx, notifications.Notification{
		UserID:  userID,
		Channel: notifications.ChannelInApp,
		Message: message,
		Data:    metadata,
	})
}

func (n *ChannelNotifier) SendEmail(ctx context.Context, userID uuid.UUID, msg EmailMessage) error {
	user, err := n.directory.User(ctx, userID)
	if err != nil {
		return fmt.Errorf("email recipient: %w", err)
	}
	body, err := n.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   user.Email,
		Subject:  msg.Subject,
		BodyHTML: body,
		Tag:      msg.Template,
	})
}
