package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stageroute/castflow/pkg/pg"
	"github.com/stageroute/castflow/svc/application"
)

// Invites implements application.InviteStore.
type Invites struct {
	db DB
}

func (s *Invites) CreateInvite(ctx context.Context, invite application.AuditionInvite) (application.AuditionInvite, error) {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO audition_invites (id, title, description, location, date, audition_type, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			invite.ID, invite.Title, invite.Description, invite.Location, invite.Date,
			invite.AuditionType, invite.CreatedBy, invite.CreatedAt)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}
		for _, appID := range invite.ApplicationIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO audition_invite_applications (invite_id, application_id) VALUES ($1, $2)`,
				invite.ID, appID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return application.AuditionInvite{}, fmt.Errorf("create invite: %w", err)
	}
	return s.get(ctx, invite.ID)
}

func (s *Invites) DeleteInvite(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM audition_invites WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}

// LinkMessage sets the invite's message once; later links are ignored.
func (s *Invites) LinkMessage(ctx context.Context, inviteID, messageID uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
		WITH linked AS (
			UPDATE audition_invites SET message_id = $2 WHERE id = $1 AND message_id IS NULL RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM linked) OR EXISTS (SELECT 1 FROM audition_invites WHERE id = $1)`,
		inviteID, messageID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("link invite message: %w", err)
	}
	if !exists {
		return application.ErrInviteNotFound
	}
	return nil
}

func (s *Invites) InvitesForApplication(ctx context.Context, applicationID uuid.UUID) ([]application.AuditionInvite, error) {
	rows, err := s.db.Query(ctx, `
		SELECT i.id FROM audition_invites i
		JOIN audition_invite_applications ia ON ia.invite_id = i.id
		WHERE ia.application_id = $1
		ORDER BY i.created_at, i.id`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}

	out := make([]application.AuditionInvite, 0, len(ids))
	for _, id := range ids {
		invite, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, invite)
	}
	return out, nil
}

func (s *Invites) get(ctx context.Context, id uuid.UUID) (application.AuditionInvite, error) {
	var inv application.AuditionInvite
	err := s.db.QueryRow(ctx, `
		SELECT id, title, description, location, date, audition_type, message_id, created_by, created_at
		FROM audition_invites WHERE id = $1`, id).
		Scan(&inv.ID, &inv.Title, &inv.Description, &inv.Location, &inv.Date,
			&inv.AuditionType, &inv.MessageID, &inv.CreatedBy, &inv.CreatedAt)
	if pg.IsNotFoundError(err) {
		return application.AuditionInvite{}, application.ErrInviteNotFound
	}
	if err != nil {
		return application.AuditionInvite{}, fmt.Errorf("get invite: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT application_id FROM audition_invite_applications WHERE invite_id = $1 ORDER BY application_id`, id)
	if err != nil {
		return application.AuditionInvite{}, fmt.Errorf("get invite applications: %w", err)
	}
	inv.ApplicationIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return application.AuditionInvite{}, fmt.Errorf("get invite applications: %w", err)
	}
	return inv, nil
}
