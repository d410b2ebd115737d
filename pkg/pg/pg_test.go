package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/stageroute/castflow/pkg/pg"
)

func TestErrorPredicates(t *testing.T) {
	t.Parallel()

	dup := &pgconn.PgError{Code: "23505"}
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsDuplicateKeyError(fmt.Errorf("insert: %w", dup)))
	assert.False(t, pg.IsDuplicateKeyError(fk))
	assert.True(t, pg.IsForeignKeyViolationError(fk))
	assert.True(t, pg.IsNotFoundError(fmt.Errorf("load: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFoundError(errors.New("other")))
	assert.False(t, pg.IsDuplicateKeyError(nil))
	assert.True(t, pg.IsCheckViolationError(&pgconn.PgError{Code: "23514"}))
	assert.False(t, pg.IsCheckViolationError(dup))
}

func TestConnect_InvalidConnectionString(t *testing.T) {
	t.Parallel()

	_, err := pg.Connect(context.Background(), pg.Config{
		ConnectionString: "://not a url",
		RetryAttempts:    1,
		RetryInterval:    time.Millisecond,
	})
	assert.ErrorIs(t, err, pg.ErrFailedToParseDBConfig)
}
