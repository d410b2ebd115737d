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

const dispatchColumns = `key, attempt, application_id, actor_id, transition, from_state, target, revision,
	payload, charge_tokens, status, done, last_error, created_at, updated_at`

// Journal implements application.DispatchJournal.
type Journal struct {
	db DB
}

func scanDispatch(row pgx.Row) (application.Dispatch, error) {
	var d application.Dispatch
	err := row.Scan(&d.Key, &d.Attempt, &d.ApplicationID, &d.ActorID, &d.Transition, &d.From, &d.Target,
		&d.Revision, &d.Payload, &d.ChargeTokens, &d.Status, &d.Done, &d.LastError, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (j *Journal) Prepare(ctx context.Context, d application.Dispatch) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	_, err := j.db.Exec(ctx, `
		INSERT INTO dispatches (`+dispatchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, '', $13, $14)
		ON CONFLICT (key) DO NOTHING`,
		d.Key, d.Attempt, d.ApplicationID, d.ActorID, d.Transition, d.From, d.Target, d.Revision,
		d.Payload, d.ChargeTokens, application.DispatchPrepared, nonNil(d.Done), d.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("prepare dispatch: %w", err)
	}
	return nil
}

// Commit keeps effects already marked done under the same key.
func (j *Journal) Commit(ctx context.Context, d application.Dispatch) error {
	now := time.Now().UTC()
	_, err := j.db.Exec(ctx, `
		INSERT INTO dispatches (`+dispatchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, '{}', '', $12, $12)
		ON CONFLICT (key) DO UPDATE SET
			attempt = EXCLUDED.attempt,
			actor_id = EXCLUDED.actor_id,
			transition = EXCLUDED.transition,
			from_state = EXCLUDED.from_state,
			payload = EXCLUDED.payload,
			charge_tokens = EXCLUDED.charge_tokens,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		d.Key, d.Attempt, d.ApplicationID, d.ActorID, d.Transition, d.From, d.Target, d.Revision,
		d.Payload, d.ChargeTokens, application.DispatchCommitted, now)
	if err != nil {
		return fmt.Errorf("commit dispatch: %w", err)
	}
	return nil
}

func (j *Journal) Abandon(ctx context.Context, key string, attempt uuid.UUID) error {
	_, err := j.db.Exec(ctx, `
		UPDATE dispatches SET status = $3, updated_at = now()
		WHERE key = $1 AND attempt = $2 AND status = $4`,
		key, attempt, application.DispatchAbandoned, application.DispatchPrepared)
	if err != nil {
		return fmt.Errorf("abandon dispatch: %w", err)
	}
	return nil
}

func (j *Journal) update(ctx context.Context, key, set string, args ...any) error {
	tag, err := j.db.Exec(ctx,
		`UPDATE dispatches SET `+set+`, updated_at = now() WHERE key = $1`, append([]any{key}, args...)...)
	if err != nil {
		return fmt.Errorf("update dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return application.ErrDispatchNotFound
	}
	return nil
}

func (j *Journal) MarkEffect(ctx context.Context, key, effect string) error {
	return j.update(ctx, key,
		`done = CASE WHEN $2 = ANY(done) THEN done ELSE array_append(done, $2) END`, effect)
}

func (j *Journal) Complete(ctx context.Context, key string) error {
	return j.update(ctx, key, `status = $2`, application.DispatchCompleted)
}

func (j *Journal) RolledBack(ctx context.Context, key, cause string) error {
	return j.update(ctx, key, `status = $2, last_error = $3`, application.DispatchRolledBack, cause)
}

func (j *Journal) Get(ctx context.Context, key string) (application.Dispatch, error) {
	d, err := scanDispatch(j.db.QueryRow(ctx, `SELECT `+dispatchColumns+` FROM dispatches WHERE key = $1`, key))
	if pg.IsNotFoundError(err) {
		return application.Dispatch{}, application.ErrDispatchNotFound
	}
	if err != nil {
		return application.Dispatch{}, fmt.Errorf("get dispatch: %w", err)
	}
	return d, nil
}

// Latest prefers a live record over an abandoned one at the same revision.
func (j *Journal) Latest(ctx context.Context, applicationID uuid.UUID) (application.Dispatch, error) {
	d, err := scanDispatch(j.db.QueryRow(ctx, `
		SELECT `+dispatchColumns+` FROM dispatches
		WHERE application_id = $1
		ORDER BY revision DESC, (status = $2), updated_at DESC
		LIMIT 1`, applicationID, application.DispatchAbandoned))
	if pg.IsNotFoundError(err) {
		return application.Dispatch{}, application.ErrDispatchNotFound
	}
	if err != nil {
		return application.Dispatch{}, fmt.Errorf("latest dispatch: %w", err)
	}
	return d, nil
}

func (j *Journal) Unfinished(ctx context.Context, cutoff time.Time, limit int) ([]application.Dispatch, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.db.Query(ctx, `
		SELECT `+dispatchColumns+` FROM dispatches
		WHERE status IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4`,
		application.DispatchPrepared, application.DispatchCommitted, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("unfinished dispatches: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (application.Dispatch, error) {
		return scanDispatch(row)
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
