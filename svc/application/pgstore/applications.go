package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stageroute/castflow/pkg/pg"
	"github.com/stageroute/castflow/svc/application"
)

const applicationColumns = `id, job_id, user_id, state, revision, rejection_reason, created_at, updated_at`

// Applications implements application.Repository.
type Applications struct {
	db DB
}

func scanApplication(row pgx.Row) (application.Application, error) {
	var a application.Application
	err := row.Scan(&a.ID, &a.JobID, &a.UserID, &a.State, &a.Revision, &a.RejectionReason, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *Applications) Get(ctx context.Context, id uuid.UUID) (application.Application, error) {
	app, err := scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return application.Application{}, application.ErrApplicationNotFound
	}
	if err != nil {
		return application.Application{}, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

// GetOrCreate relies on the (job_id, user_id) unique key, so concurrent
// callers converge on one row.
func (r *Applications) GetOrCreate(ctx context.Context, jobID, userID uuid.UUID) (application.Application, bool, error) {
	fresh := application.NewApplication(jobID, userID, time.Now().UTC())
	app, err := scanApplication(r.db.QueryRow(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, '', $6, $6)
		ON CONFLICT (job_id, user_id) DO NOTHING
		RETURNING `+applicationColumns,
		fresh.ID, fresh.JobID, fresh.UserID, fresh.State, fresh.Revision, fresh.CreatedAt))
	if err == nil {
		return app, true, nil
	}
	if !pg.IsNotFoundError(err) {
		return application.Application{}, false, fmt.Errorf("create application: %w", err)
	}

	app, err = scanApplication(r.db.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 AND user_id = $2`, jobID, userID))
	if err != nil {
		return application.Application{}, false, fmt.Errorf("load application: %w", err)
	}
	return app, false, nil
}

func (r *Applications) CompareAndSwap(ctx context.Context, id uuid.UUID, expected int64, next application.State, at time.Time) (application.Application, error) {
	app, err := scanApplication(r.db.QueryRow(ctx, `
		UPDATE applications SET state = $3, revision = revision + 1, updated_at = $4
		WHERE id = $1 AND revision = $2
		RETURNING `+applicationColumns,
		id, expected, next, at))
	if err == nil {
		return app, nil
	}
	if !pg.IsNotFoundError(err) {
		return application.Application{}, fmt.Errorf("swap application state: %w", err)
	}
	if _, err := r.Get(ctx, id); err != nil {
		return application.Application{}, err
	}
	return application.Application{}, application.ErrConcurrentModification
}

func (r *Applications) SetRejectionReason(ctx context.Context, id uuid.UUID, reason string) error {
	tag, err := r.db.Exec(ctx, `UPDATE applications SET rejection_reason = $2 WHERE id = $1`, id, reason)
	if err != nil {
		return fmt.Errorf("set rejection reason: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrApplicationNotFound
	}
	return nil
}

func (r *Applications) ListByJob(ctx context.Context, jobID uuid.UUID) ([]application.Application, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY created_at, id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.Application, error) {
		return scanApplication(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}
