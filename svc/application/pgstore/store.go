// Package pgstore implements the application ports on PostgreSQL.
package pgstore

import (
	"context"
	"embed"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stageroute/castflow/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Migrate applies the store's schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrations, "migrations", cfg, log)
}

// Store hands out the port adapters sharing one connection pool.
type Store struct {
	db DB
}

func New(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Applications() *Applications   { return &Applications{db: s.db} }
func (s *Store) Invites() *Invites             { return &Invites{db: s.db} }
func (s *Store) Ledger() *Ledger               { return &Ledger{db: s.db} }
func (s *Store) Messages() *Messages           { return &Messages{db: s.db} }
func (s *Store) Directory() *Directory         { return &Directory{db: s.db} }
func (s *Store) Activities() *Activities       { return &Activities{db: s.db} }
func (s *Store) Journal() *Journal             { return &Journal{db: s.db} }
func (s *Store) Notifications() *Notifications { return &Notifications{db: s.db} }
