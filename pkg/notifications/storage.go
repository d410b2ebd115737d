package notifications

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Storage persists notifications.
type Storage interface {
	Create(ctx context.Context, n Notification) error
	// List returns a user's notifications, newest first.
	List(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids ...uuid.UUID) error
}

type ListOptions struct {
	Limit      int // 0 means no limit
	OnlyUnread bool
}

// MemoryStorage is an in-process Storage.
type MemoryStorage struct {
	mu     sync.RWMutex
	byUser map[uuid.UUID][]Notification
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{byUser: make(map[uuid.UUID][]Notification)}
}

func (s *MemoryStorage) Create(_ context.Context, n Notification) error {
	if err := n.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[n.UserID] = append(s.byUser[n.UserID], n)
	return nil
}

func (s *MemoryStorage) List(_ context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.byUser[userID]
	out := make([]Notification, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		n := stored[i]
		if opts.OnlyUnread && n.Read {
			continue
		}
		out = append(out, n)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStorage) MarkRead(_ context.Context, userID uuid.UUID, ids ...uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.byUser[userID]
	found := 0
	for i := range stored {
		if slices.Contains(ids, stored[i].ID) {
			stored[i].Read = true
			found++
		}
	}
	if found < len(ids) {
		return ErrNotificationNotFound
	}
	return nil
}
