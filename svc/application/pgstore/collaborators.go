package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stageroute/castflow/pkg/pg"
	"github.com/stageroute/castflow/svc/application"
)

// Messages implements application.Messenger by storing direct messages.
type Messages struct {
	db DB
}

func (m *Messages) SendMessage(ctx context.Context, senderID, recipientID uuid.UUID, subject, body string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := m.db.Exec(ctx,
		`INSERT INTO messages (id, sender_id, recipient_id, subject, body) VALUES ($1, $2, $3, $4, $5)`,
		id, senderID, recipientID, subject, body)
	if err != nil {
		return uuid.Nil, fmt.Errorf("send message: %w", err)
	}
	return id, nil
}

// Directory reads users and jobs. It implements application.Directory and
// resolves roles for capability checks.
type Directory struct {
	db DB
}

func (d *Directory) Job(ctx context.Context, id uuid.UUID) (application.Job, error) {
	var j application.Job
	err := d.db.QueryRow(ctx,
		`SELECT id, created_by, title, required_tokens FROM jobs WHERE id = $1`, id).
		Scan(&j.ID, &j.CreatedBy, &j.Title, &j.RequiredTokens)
	if pg.IsNotFoundError(err) {
		return application.Job{}, application.ErrJobNotFound
	}
	if err != nil {
		return application.Job{}, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (d *Directory) User(ctx context.Context, id uuid.UUID) (application.User, error) {
	var u application.User
	err := d.db.QueryRow(ctx, `
		SELECT id, first_name, email, role, is_casting_director, incentive_plan,
		       app_notification, push_notification, email_notification
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.FirstName, &u.Email, &u.Role, &u.IsCastingDirector, &u.IncentivePlan,
			&u.Preferences.AppNotification, &u.Preferences.PushNotification, &u.Preferences.EmailNotification)
	if pg.IsNotFoundError(err) {
		return application.User{}, application.ErrUserNotFound
	}
	if err != nil {
		return application.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// RoleOf returns the user's role, or "" for unknown users.
func (d *Directory) RoleOf(ctx context.Context, id uuid.UUID) (string, error) {
	var role string
	err := d.db.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, id).Scan(&role)
	if pg.IsNotFoundError(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	return role, nil
}

// Activities implements application.ActivityRecorder.
type Activities struct {
	db DB
}

func (a *Activities) Record(ctx context.Context, e application.Activity) error {
	_, err := a.db.Exec(ctx, `
		INSERT INTO application_activities (application_id, actor_id, transition, from_state, to_state, revision, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ApplicationID, e.ActorID, e.Transition, e.From, e.To, e.Revision, e.At)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}
	return nil
}

// For returns an application's history, oldest first.
func (a *Activities) For(ctx context.Context, applicationID uuid.UUID) ([]application.Activity, error) {
	rows, err := a.db.Query(ctx, `
		SELECT application_id, actor_id, transition, from_state, to_state, revision, at
		FROM application_activities WHERE application_id = $1 ORDER BY id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.Activity, error) {
		var e application.Activity
		err := row.Scan(&e.ApplicationID, &e.ActorID, &e.Transition, &e.From, &e.To, &e.Revision, &e.At)
		return e, err
	})
}
