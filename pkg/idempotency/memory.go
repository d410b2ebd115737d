package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Locker and Store in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	locks   map[string]time.Time
	records map[string]memoryRecord
}

type memoryRecord struct {
	rec       Record
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		locks:   make(map[string]time.Time),
		records: make(map[string]memoryRecord),
	}
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.locks[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.locks, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mr, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	if !mr.expiresAt.IsZero() && !s.now().Before(mr.expiresAt) {
		delete(s.records, key)
		return nil, nil
	}
	rec := mr.rec
	rec.Body = append([]byte(nil), mr.rec.Body...)
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec Record, ttl time.Duration) error {
	if rec.Key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if mr, ok := s.records[rec.Key]; ok && (mr.expiresAt.IsZero() || now.Before(mr.expiresAt)) {
		return ErrRecordExists
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	rec.Body = append([]byte(nil), rec.Body...)
	s.records[rec.Key] = memoryRecord{rec: rec, expiresAt: exp}
	return nil
}
