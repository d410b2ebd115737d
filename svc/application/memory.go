package application

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory collaborators for tests and single-process development. They are
// safe for concurrent use.

type pairKey struct{ job, user uuid.UUID }

// MemoryRepository implements Repository.
type MemoryRepository struct {
	mu     sync.Mutex
	apps   map[uuid.UUID]Application
	byPair map[pairKey]uuid.UUID
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		apps:   make(map[uuid.UUID]Application),
		byPair: make(map[pairKey]uuid.UUID),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Put stores app as is, replacing any application with the same id.
func (r *MemoryRepository) Put(app Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[app.ID] = app
	r.byPair[pairKey{app.JobID, app.UserID}] = app.ID
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return Application{}, ErrApplicationNotFound
	}
	return app, nil
}

func (r *MemoryRepository) GetOrCreate(_ context.Context, jobID, userID uuid.UUID) (Application, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[pairKey{jobID, userID}]; ok {
		return r.apps[id], false, nil
	}
	app := NewApplication(jobID, userID, r.now())
	r.apps[app.ID] = app
	r.byPair[pairKey{jobID, userID}] = app.ID
	return app, true, nil
}

func (r *MemoryRepository) CompareAndSwap(_ context.Context, id uuid.UUID, expected int64, next State, at time.Time) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return Application{}, ErrApplicationNotFound
	}
	if app.Revision != expected {
		return Application{}, ErrConcurrentModification
	}
	app.State = next
	app.Revision++
	app.UpdatedAt = at
	r.apps[id] = app
	return app, nil
}

func (r *MemoryRepository) SetRejectionReason(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return ErrApplicationNotFound
	}
	app.RejectionReason = reason
	r.apps[id] = app
	return nil
}

func (r *MemoryRepository) ListByJob(_ context.Context, jobID uuid.UUID) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Application
	for _, app := range r.apps {
		if app.JobID == jobID {
			out = append(out, app)
		}
	}
	slices.SortFunc(out, func(a, b Application) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// MemoryInvites implements InviteStore.
type MemoryInvites struct {
	mu      sync.Mutex
	invites map[uuid.UUID]AuditionInvite
}

func NewMemoryInvites() *MemoryInvites {
	return &MemoryInvites{invites: make(map[uuid.UUID]AuditionInvite)}
}

func (s *MemoryInvites) CreateInvite(_ context.Context, invite AuditionInvite) (AuditionInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.invites[invite.ID]; ok {
		return existing, nil
	}
	s.invites[invite.ID] = invite
	return invite, nil
}

func (s *MemoryInvites) DeleteInvite(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invites, id)
	return nil
}

func (s *MemoryInvites) LinkMessage(_ context.Context, inviteID, messageID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[inviteID]
	if !ok {
		return ErrInviteNotFound
	}
	if invite.MessageID == nil {
		invite.MessageID = &messageID
		s.invites[inviteID] = invite
	}
	return nil
}

func (s *MemoryInvites) InvitesForApplication(_ context.Context, applicationID uuid.UUID) ([]AuditionInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []AuditionInvite
	for _, inv := range s.invites {
		if slices.Contains(inv.ApplicationIDs, applicationID) {
			out = append(out, inv)
		}
	}
	slices.SortFunc(out, func(a, b AuditionInvite) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Count returns the number of stored invites.
func (s *MemoryInvites) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invites)
}

// MemoryLedger implements Ledger with idempotent transfer keys.
type MemoryLedger struct {
	mu        sync.Mutex
	balances  map[uuid.UUID]int64
	transfers map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:  make(map[uuid.UUID]int64),
		transfers: make(map[string]string),
	}
}

// SetBalance overwrites a user's balance.
func (l *MemoryLedger) SetBalance(userID uuid.UUID, amount int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[userID] = amount
}

func (l *MemoryLedger) Balance(_ context.Context, userID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

func (l *MemoryLedger) Debit(_ context.Context, userID uuid.UUID, amount int64, reference string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.transfers[reference]; ok {
		return id, nil
	}
	if l.balances[userID] < amount {
		return "", ErrInsufficientTokens
	}
	l.balances[userID] -= amount
	id := uuid.NewString()
	l.transfers[reference] = id
	return id, nil
}

func (l *MemoryLedger) Credit(_ context.Context, userID uuid.UUID, amount int64, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.transfers[key]; ok {
		return id, nil
	}
	l.balances[userID] += amount
	id := uuid.NewString()
	l.transfers[key] = id
	return id, nil
}

// HasTransfer reports whether a transfer with key was applied.
func (l *MemoryLedger) HasTransfer(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.transfers[key]
	return ok
}

// SentMessage is a message captured by MemoryMessenger.
type SentMessage struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Subject     string
	Body        string
}

// MemoryMessenger implements Messenger by keeping every message.
type MemoryMessenger struct {
	mu       sync.Mutex
	messages []SentMessage
}

func NewMemoryMessenger() *MemoryMessenger { return &MemoryMessenger{} }

func (m *MemoryMessenger) SendMessage(_ context.Context, senderID, recipientID uuid.UUID, subject, body string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := SentMessage{ID: uuid.New(), SenderID: senderID, RecipientID: recipientID, Subject: subject, Body: body}
	m.messages = append(m.messages, msg)
	return msg.ID, nil
}

func (m *MemoryMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.messages)
}

// MemoryDirectory implements Directory over fixed jobs and users.
type MemoryDirectory struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]Job
	users map[uuid.UUID]User
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{jobs: make(map[uuid.UUID]Job), users: make(map[uuid.UUID]User)}
}

func (d *MemoryDirectory) AddJob(job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs[job.ID] = job
}

func (d *MemoryDirectory) AddUser(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *MemoryDirectory) Job(_ context.Context, id uuid.UUID) (Job, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	job, ok := d.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

func (d *MemoryDirectory) User(_ context.Context, id uuid.UUID) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// StaticPermissions implements PermissionChecker from a fixed grant table.
type StaticPermissions map[uuid.UUID][]string

func (p StaticPermissions) HasCapability(_ context.Context, actorID uuid.UUID, capability string) (bool, error) {
	return slices.Contains(p[actorID], capability), nil
}

// MemoryActivity implements ActivityRecorder.
type MemoryActivity struct {
	mu      sync.Mutex
	entries []Activity
}

func NewMemoryActivity() *MemoryActivity { return &MemoryActivity{} }

func (a *MemoryActivity) Record(_ context.Context, entry Activity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// For returns the entries recorded for an application, oldest first.
func (a *MemoryActivity) For(applicationID uuid.UUID) []Activity {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Activity
	for _, e := range a.entries {
		if e.ApplicationID == applicationID {
			out = append(out, e)
		}
	}
	return out
}

// MemoryJournal implements DispatchJournal.
type MemoryJournal struct {
	mu      sync.Mutex
	records map[string]Dispatch
	now     func() time.Time
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		records: make(map[string]Dispatch),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source used for UpdatedAt.
func (j *MemoryJournal) WithClock(now func() time.Time) *MemoryJournal {
	j.now = now
	return j
}

func (j *MemoryJournal) Prepare(_ context.Context, d Dispatch) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.records[d.Key]; ok {
		return nil
	}
	d.Status = DispatchPrepared
	d.Done = slices.Clone(d.Done)
	d.UpdatedAt = j.now()
	j.records[d.Key] = d
	return nil
}

func (j *MemoryJournal) Commit(_ context.Context, d Dispatch) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if existing, ok := j.records[d.Key]; ok {
		d.Done = existing.Done
		d.CreatedAt = existing.CreatedAt
	}
	d.Status = DispatchCommitted
	d.UpdatedAt = j.now()
	j.records[d.Key] = d
	return nil
}

func (j *MemoryJournal) Abandon(_ context.Context, key string, attempt uuid.UUID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	d, ok := j.records[key]
	if !ok || d.Status != DispatchPrepared || d.Attempt != attempt {
		return nil
	}
	d.Status = DispatchAbandoned
	d.UpdatedAt = j.now()
	j.records[key] = d
	return nil
}

func (j *MemoryJournal) update(key string, fn func(*Dispatch)) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	d, ok := j.records[key]
	if !ok {
		return ErrDispatchNotFound
	}
	fn(&d)
	d.UpdatedAt = j.now()
	j.records[key] = d
	return nil
}

func (j *MemoryJournal) MarkEffect(_ context.Context, key, effect string) error {
	return j.update(key, func(d *Dispatch) {
		if !slices.Contains(d.Done, effect) {
			d.Done = append(slices.Clone(d.Done), effect)
		}
	})
}

func (j *MemoryJournal) Complete(_ context.Context, key string) error {
	return j.update(key, func(d *Dispatch) { d.Status = DispatchCompleted })
}

func (j *MemoryJournal) RolledBack(_ context.Context, key, cause string) error {
	return j.update(key, func(d *Dispatch) {
		d.Status = DispatchRolledBack
		d.LastError = cause
	})
}

func (j *MemoryJournal) Get(_ context.Context, key string) (Dispatch, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	d, ok := j.records[key]
	if !ok {
		return Dispatch{}, ErrDispatchNotFound
	}
	d.Done = slices.Clone(d.Done)
	return d, nil
}

func (j *MemoryJournal) Latest(_ context.Context, applicationID uuid.UUID) (Dispatch, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var (
		latest Dispatch
		found  bool
	)
	for _, d := range j.records {
		if d.ApplicationID != applicationID {
			continue
		}
		if !found || d.Revision > latest.Revision ||
			(d.Revision == latest.Revision && latest.Status == DispatchAbandoned) {
			latest, found = d, true
		}
	}
	if !found {
		return Dispatch{}, ErrDispatchNotFound
	}
	latest.Done = slices.Clone(latest.Done)
	return latest, nil
}

func (j *MemoryJournal) Unfinished(_ context.Context, cutoff time.Time, limit int) ([]Dispatch, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []Dispatch
	for _, d := range j.records {
		if d.Status.Finished() || !d.UpdatedAt.Before(cutoff) {
			continue
		}
		d.Done = slices.Clone(d.Done)
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b Dispatch) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
