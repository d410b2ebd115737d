// Package notifications stores user notifications and hands them to delivery
// channels.
//
// A Manager persists every notification first and then delivers it on a best
// effort basis, so a failed push never loses the in-app record:
//
//	manager := notifications.NewManager(storage, notifications.NewLogDeliverer(log))
//	err := manager.Send(ctx, notifications.Notification{
//	    UserID:  candidateID,
//	    Channel: notifications.ChannelPush,
//	    Message: "Your profile was recently shortlisted.",
//	})
package notifications

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotificationNotFound = errors.New("notifications: not found")
	ErrMissingUser          = errors.New("notifications: user id is required")
	ErrEmptyMessage         = errors.New("notifications: message is required")
)

// Channel is where a notification is shown.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "in_app"
)

// Notification is a message addressed to one user.
type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"user_id"`
	Channel   Channel           `json:"channel"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"created_at"`
}

func (n Notification) validate() error {
	if n.UserID == uuid.Nil {
		return ErrMissingUser
	}
	if n.Message == "" {
		return ErrEmptyMessage
	}
	return nil
}
