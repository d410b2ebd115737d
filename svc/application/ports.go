package application

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists applications. State changes only through CompareAndSwap.
type Repository interface {
	// Get returns ErrApplicationNotFound for unknown ids.
	Get(ctx context.Context, id uuid.UUID) (Application, error)
	// GetOrCreate returns the application for (job, user), creating it in the
	// initial state if none exists. created reports which happened.
	GetOrCreate(ctx context.Context, jobID, userID uuid.UUID) (app Application, created bool, err error)
	// CompareAndSwap moves the application to next only if its stored revision
	// equals expected, incrementing the revision. It returns
	// ErrConcurrentModification when the revision has moved on.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expected int64, next State, at time.Time) (Application, error)
	// SetRejectionReason stores reason on an application.
	SetRejectionReason(ctx context.Context, id uuid.UUID, reason string) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]Application, error)
}

// InviteStore persists audition invites.
type InviteStore interface {
	// CreateInvite is idempotent on invite.ID: creating an existing id returns the stored invite.
	CreateInvite(ctx context.Context, invite AuditionInvite) (AuditionInvite, error)
	DeleteInvite(ctx context.Context, id uuid.UUID) error
	LinkMessage(ctx context.Context, inviteID, messageID uuid.UUID) error
	InvitesForApplication(ctx context.Context, applicationID uuid.UUID) ([]AuditionInvite, error)
}

// Ledger moves tokens between candidate and agent accounts.
type Ledger interface {
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
	// Debit fails with ErrInsufficientTokens when the balance is too low.
	// A repeated reference returns the original transfer.
	Debit(ctx context.Context, userID uuid.UUID, amount int64, reference string) (transferID string, err error)
	// Credit is a no-op returning the original transfer if key was already applied.
	Credit(ctx context.Context, userID uuid.UUID, amount int64, key string) (transferID string, err error)
}

// EmailMessage selects a template and its data.
type EmailMessage struct {
	Template string
	Subject  string
	Data     map[string]string
}

// Notifier delivers best-effort notifications.
type Notifier interface {
	SendPush(ctx context.Context, userID uuid.UUID, message string, metadata map[string]string) error
	SendInApp(ctx context.Context, userID uuid.UUID, message string, metadata map[string]string) error
	SendEmail(ctx context.Context, userID uuid.UUID, msg EmailMessage) error
}

// Messenger sends direct messages between users.
type Messenger interface {
	SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, subject, body string) (messageID uuid.UUID, err error)
}

// PermissionChecker answers capability questions for actors.
type PermissionChecker interface {
	HasCapability(ctx context.Context, actorID uuid.UUID, capability string) (bool, error)
}

// Job is the slice of a job listing the lifecycle needs.
type Job struct {
	ID             uuid.UUID
	CreatedBy      uuid.UUID
	Title          string
	RequiredTokens int64
}

// Preferences are a user's notification opt-ins.
type Preferences struct {
	AppNotification   bool
	PushNotification  bool
	EmailNotification bool
}

// User is the slice of a user profile the lifecycle needs.
type User struct {
	ID                uuid.UUID
	FirstName         string
	Email             string
	Role              string
	IsCastingDirector bool
	IncentivePlan     string // "25%" or a flat amount such as "500"; empty means the default plan
	Preferences       Preferences
}

// Directory reads jobs and users owned by other services.
type Directory interface {
	Job(ctx context.Context, id uuid.UUID) (Job, error)
	User(ctx context.Context, id uuid.UUID) (User, error)
}

// ActivityRecorder appends to an application's history.
type ActivityRecorder interface {
	Record(ctx context.Context, a Activity) error
}

// DispatchJournal records side-effect progress so a dispatch interrupted after
// its state change can be resumed without repeating finished effects.
type DispatchJournal interface {
	// Prepare stores d before the state change is attempted. An existing
	// record under the same key is left untouched.
	Prepare(ctx context.Context, d Dispatch) error
	// Commit records that the state change behind d succeeded, replacing the
	// prepared record's attempt, actor and payload.
	Commit(ctx context.Context, d Dispatch) error
	// Abandon marks a prepared record dead, but only while it is still
	// prepared and owned by attempt.
	Abandon(ctx context.Context, key string, attempt uuid.UUID) error
	MarkEffect(ctx context.Context, key, effect string) error
	Complete(ctx context.Context, key string) error
	RolledBack(ctx context.Context, key, cause string) error
	Get(ctx context.Context, key string) (Dispatch, error)
	// Latest returns the newest record for an application.
	Latest(ctx context.Context, applicationID uuid.UUID) (Dispatch, error)
	// Unfinished returns prepared or committed records last touched before cutoff.
	Unfinished(ctx context.Context, cutoff time.Time, limit int) ([]Dispatch, error)
}
