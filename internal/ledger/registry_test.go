package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

const (
	getAccountQuery     = `SELECT id, display_name, balance, deposit_liability, enabled, blocked, is_admin, version, created_at, updated_at FROM accounts WHERE id = \$1`
	lockAccountForState = `SELECT id, display_name, balance, deposit_liability, enabled, blocked, is_admin, version, created_at, updated_at FROM accounts WHERE id = \$1 FOR UPDATE`
	updateLifecycle     = `UPDATE accounts SET enabled = \$1, blocked = \$2, is_admin = \$3, updated_at = \$4 WHERE id = \$5`
)

func accountColumnsList() []string {
	return []string{"id", "display_name", "balance", "deposit_liability",
		"enabled", "blocked", "is_admin", "version", "created_at", "updated_at"}
}

func accountRow(id, name string, enabled, blocked, admin bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(accountColumnsList()).
		AddRow(id, name, 0, 0, enabled, blocked, admin, 1, now, now)
}

func TestRegistry_Register(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	registry := NewRegistry(db, zap.NewNop())

	t.Run("creates a pending account", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("alice").
			WillReturnRows(sqlmock.NewRows(accountColumnsList()))
		mock.ExpectQuery(`INSERT INTO accounts \(id, display_name\)`).
			WithArgs("alice", "Alice").
			WillReturnRows(accountRow("alice", "Alice", false, false, false))

		account, err := registry.Register(context.Background(), "alice", "Alice")
		assert.NoError(t, err)
		assert.False(t, account.Enabled)
		assert.False(t, account.Blocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("idempotent while pending", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("alice").
			WillReturnRows(accountRow("alice", "Alice", false, false, false))

		account, err := registry.Register(context.Background(), "alice", "Alice")
		assert.NoError(t, err)
		assert.False(t, account.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already active", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("alice").
			WillReturnRows(accountRow("alice", "Alice", true, false, false))

		_, err := registry.Register(context.Background(), "alice", "Alice")
		assert.True(t, IsKind(err, KindAlreadyInState))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegistry_Approve(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	registry := NewRegistry(db, zap.NewNop())

	t.Run("enables a pending account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("alice").
			WillReturnRows(accountRow("alice", "Alice", false, false, false))
		mock.ExpectExec(updateLifecycle).
			WithArgs(true, false, false, sqlmock.AnyArg(), "alice").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, err := registry.Approve(context.Background(), "alice")
		assert.NoError(t, err)
		assert.True(t, account.Enabled)
		assert.False(t, account.Blocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-approval after block clears the block", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("alice").
			WillReturnRows(accountRow("alice", "Alice", false, true, false))
		mock.ExpectExec(updateLifecycle).
			WithArgs(true, false, false, sqlmock.AnyArg(), "alice").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, err := registry.Approve(context.Background(), "alice")
		assert.NoError(t, err)
		assert.True(t, account.Enabled)
		assert.False(t, account.Blocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("approving an active account is a no-op error", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("alice").
			WillReturnRows(accountRow("alice", "Alice", true, false, false))
		mock.ExpectRollback()

		_, err := registry.Approve(context.Background(), "alice")
		assert.True(t, IsKind(err, KindAlreadyInState))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown target", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows(accountColumnsList()))
		mock.ExpectRollback()

		_, err := registry.Approve(context.Background(), "ghost")
		assert.True(t, IsKind(err, KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegistry_SetBlocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	registry := NewRegistry(db, zap.NewNop())

	t.Run("blocking disables", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("bob").
			WillReturnRows(accountRow("bob", "Bob", true, false, false))
		mock.ExpectExec(updateLifecycle).
			WithArgs(false, true, false, sqlmock.AnyArg(), "bob").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, err := registry.SetBlocked(context.Background(), "bob", true)
		assert.NoError(t, err)
		assert.True(t, account.Blocked)
		assert.False(t, account.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unblocking re-enables", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("bob").
			WillReturnRows(accountRow("bob", "Bob", false, true, false))
		mock.ExpectExec(updateLifecycle).
			WithArgs(true, false, false, sqlmock.AnyArg(), "bob").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, err := registry.SetBlocked(context.Background(), "bob", false)
		assert.NoError(t, err)
		assert.False(t, account.Blocked)
		assert.True(t, account.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no change is AlreadyInState", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("bob").
			WillReturnRows(accountRow("bob", "Bob", true, false, false))
		mock.ExpectRollback()

		_, err := registry.SetBlocked(context.Background(), "bob", false)
		assert.True(t, IsKind(err, KindAlreadyInState))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegistry_SetAdmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	registry := NewRegistry(db, zap.NewNop())

	t.Run("promotes", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockAccountForState).
			WithArgs("bob").
			WillReturnRows(accountRow("bob", "Bob", true, false, false))
		mock.ExpectExec(updateLifecycle).
			WithArgs(true, false, true, sqlmock.AnyArg(), "bob").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		account, err := registry.SetAdmin(context.Background(), "bob", true)
		assert.NoError(t, err)
		assert.True(t, account.Admin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegistry_SyncDisplayName(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	registry := NewRegistry(db, zap.NewNop())

	t.Run("writes only when different", func(t *testing.T) {
		mock.ExpectExec(`UPDATE accounts SET display_name = \$1, updated_at = \$2 WHERE id = \$3 AND display_name <> \$1`).
			WithArgs("NewName", sqlmock.AnyArg(), "alice").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := registry.SyncDisplayName(context.Background(), "alice", "NewName")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty observed name is a no-op", func(t *testing.T) {
		err := registry.SyncDisplayName(context.Background(), "alice", "")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
