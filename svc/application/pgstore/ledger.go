package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stageroute/castflow/pkg/pg"
	"github.com/stageroute/castflow/svc/application"
)

// Ledger implements application.Ledger. Every transfer is keyed, and a key
// that was already applied returns the original transfer id.
type Ledger struct {
	db DB
}

func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	var balance int64
	err := l.db.QueryRow(ctx, `SELECT balance FROM token_accounts WHERE user_id = $1`, userID).Scan(&balance)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("token balance: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites a user's balance.
func (l *Ledger) SetBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	_, err := l.db.Exec(ctx, `
		INSERT INTO token_accounts (user_id, balance) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance`, userID, amount)
	return err
}

func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int64, reference string) (string, error) {
	return l.transfer(ctx, userID, -amount, reference)
}

func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount int64, key string) (string, error) {
	return l.transfer(ctx, userID, amount, key)
}

func (l *Ledger) transfer(ctx context.Context, userID uuid.UUID, delta int64, key string) (string, error) {
	var transferID uuid.UUID
	err := pgx.BeginFunc(ctx, l.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO token_transfers (key, id, user_id, amount) VALUES ($1, $2, $3, $4)
			ON CONFLICT (key) DO NOTHING
			RETURNING id`, key, uuid.New(), userID, delta).Scan(&transferID)
		if pg.IsNotFoundError(err) {
			return tx.QueryRow(ctx, `SELECT id FROM token_transfers WHERE key = $1`, key).Scan(&transferID)
		}
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO token_accounts (user_id, balance) VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE SET balance = token_accounts.balance + EXCLUDED.balance
			WHERE token_accounts.balance + EXCLUDED.balance >= 0`, userID, delta)
		if err != nil {
			if pg.IsCheckViolationError(err) {
				return application.ErrInsufficientTokens
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return application.ErrInsufficientTokens
		}
		return nil
	})
	if errors.Is(err, application.ErrInsufficientTokens) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("token transfer %s: %w", key, err)
	}
	return transferID.String(), nil
}
