package pg_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logsmart/authcore/pkg/pg"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	fk := &pgconn.PgError{Code: "23503"}

	assert.True(t, pg.IsUniqueViolation(dup))
	assert.False(t, pg.IsUniqueViolation(fk))
	assert.False(t, pg.IsUniqueViolation(nil))
	assert.Equal(t, "users_email_key", pg.ConstraintName(dup, pg.CodeUniqueViolation))
	assert.Empty(t, pg.ConstraintName(fk, pg.CodeUniqueViolation))

	assert.True(t, pg.IsForeignKeyViolation(fk))
	assert.True(t, pg.IsNotFound(fmt.Errorf("get: %w", pgx.ErrNoRows)))
	assert.False(t, pg.IsNotFound(errors.New("other")))
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	check := pg.Healthcheck(mock)
	assert.NoError(t, check(context.Background()))
	assert.ErrorIs(t, check(context.Background()), pg.ErrUnhealthy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTx(t *testing.T) {
	t.Parallel()

	t.Run("commit", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM passkeys").WillReturnResult(pgxmock.NewResult("DELETE", 1))
		mock.ExpectCommit()

		err = pg.InTx(context.Background(), mock, func(tx pgx.Tx) error {
			_, err := tx.Exec(context.Background(), "DELETE FROM passkeys")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err = pg.InTx(context.Background(), mock, func(pgx.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMigrate_NoFilesystem(t *testing.T) {
	t.Parallel()
	err := pg.Migrate(context.Background(), nil, nil, "migrations", pg.Config{}, nil)
	assert.ErrorIs(t, err, pg.ErrMigrate)
}

func TestConnectValidation(t *testing.T) {
	t.Parallel()
	_, err := pg.Connect(context.Background(), pg.Config{})
	assert.ErrorIs(t, err, pg.ErrNoURL)

	_, err = pg.Connect(context.Background(), pg.Config{ConnectionString: "postgres://%zz"})
	assert.ErrorIs(t, err, pg.ErrBadConfig)
}
