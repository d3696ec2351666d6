package handlers

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/ledger"
)

func TestResolveTarget(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	registry := ledger.NewRegistry(db, zap.NewNop())

	t.Run("@name resolves via display name", func(t *testing.T) {
		mock.ExpectQuery(getByNameQuery).
			WithArgs("Bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, true, false, false))

		account, err := resolveTarget(context.Background(), registry, "@Bob")
		assert.NoError(t, err)
		assert.Equal(t, "bob", account.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("raw id resolves directly", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, true, false, false))

		account, err := resolveTarget(context.Background(), registry, "bob")
		assert.NoError(t, err)
		assert.Equal(t, "bob", account.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown name is NotFound", func(t *testing.T) {
		mock.ExpectQuery(getByNameQuery).
			WithArgs("Nobody").
			WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "balance", "deposit_liability",
				"enabled", "blocked", "is_admin", "version", "created_at", "updated_at"}))

		_, err := resolveTarget(context.Background(), registry, "@Nobody")
		assert.True(t, ledger.IsKind(err, ledger.KindNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed targets", func(t *testing.T) {
		for _, target := range []string{"", "@"} {
			_, err := resolveTarget(context.Background(), registry, target)
			assert.True(t, ledger.IsKind(err, ledger.KindInvalidInput), "target %q", target)
		}
	})
}
