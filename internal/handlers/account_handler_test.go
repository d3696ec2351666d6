package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/ledger"
	"github.com/matekasse/backend/internal/models"
	"github.com/matekasse/backend/internal/notify"
)

func newAccountHandler(t *testing.T) (*AccountHandler, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	logger := zap.NewNop()
	registry := ledger.NewRegistry(db, logger)
	gate := ledger.NewGate(registry, logger)
	notifier := notify.New(nil, logger)
	return NewAccountHandler(registry, gate, notifier, logger), mock, func() { db.Close() }
}

func TestAccountHandler_Register(t *testing.T) {
	handler, mock, cleanup := newAccountHandler(t)
	defer cleanup()

	t.Run("new actor lands in pending state", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("bob").
			WillReturnRows(sqlmock.NewRows([]string{"id", "display_name", "balance", "deposit_liability",
				"enabled", "blocked", "is_admin", "version", "created_at", "updated_at"}))
		mock.ExpectQuery(`INSERT INTO accounts \(id, display_name\)`).
			WithArgs("bob", "Bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, false, false, false))
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE is_admin`).
			WillReturnRows(fullAccountRow("root", "Root", 0, true, false, true))

		w := httptest.NewRecorder()
		handler.Register(w, actorRequest(http.MethodPost, "/api/v1/register", "", ledger.Actor{ID: "bob", DisplayName: "Bob"}))

		assert.Equal(t, http.StatusAccepted, w.Code)
		var account models.Account
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
		assert.False(t, account.Enabled)
		assert.False(t, account.Blocked)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("active account cannot re-register", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, true, false, false))

		w := httptest.NewRecorder()
		handler.Register(w, actorRequest(http.MethodPost, "/api/v1/register", "", ledger.Actor{ID: "bob", DisplayName: "Bob"}))

		assert.Equal(t, http.StatusConflict, w.Code)
		var resp ErrorResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "already_active", resp.Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountHandler_Approve(t *testing.T) {
	handler, mock, cleanup := newAccountHandler(t)
	defer cleanup()

	t.Run("admin approves a pending account", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("root").
			WillReturnRows(fullAccountRow("root", "Root", 0, true, false, true))
		mock.ExpectQuery(getAccountQuery).
			WithArgs("bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, false, false, false))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1 FOR UPDATE`).
			WithArgs("bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, false, false, false))
		mock.ExpectExec(`UPDATE accounts SET enabled = \$1, blocked = \$2, is_admin = \$3`).
			WithArgs(true, false, false, sqlmock.AnyArg(), "bob").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		router := chi.NewRouter()
		router.Post("/accounts/{target}/approve", handler.Approve)

		req := actorRequest(http.MethodPost, "/accounts/bob/approve", "", ledger.Actor{ID: "root", DisplayName: "Root"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var account models.Account
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &account))
		assert.True(t, account.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("double approval reports AlreadyInState", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("root").
			WillReturnRows(fullAccountRow("root", "Root", 0, true, false, true))
		mock.ExpectQuery(getAccountQuery).
			WithArgs("bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, true, false, false))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT (.+) FROM accounts WHERE id = \$1 FOR UPDATE`).
			WithArgs("bob").
			WillReturnRows(fullAccountRow("bob", "Bob", 0, true, false, false))
		mock.ExpectRollback()

		router := chi.NewRouter()
		router.Post("/accounts/{target}/approve", handler.Approve)

		req := actorRequest(http.MethodPost, "/accounts/bob/approve", "", ledger.Actor{ID: "root", DisplayName: "Root"})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountHandler_List(t *testing.T) {
	handler, mock, cleanup := newAccountHandler(t)
	defer cleanup()

	t.Run("admin sees all accounts with state flags", func(t *testing.T) {
		mock.ExpectQuery(getAccountQuery).
			WithArgs("root").
			WillReturnRows(fullAccountRow("root", "Root", 0, true, false, true))
		mock.ExpectQuery(`SELECT (.+) FROM accounts ORDER BY display_name, id`).
			WillReturnRows(fullAccountRow("alice", "Alice", 5, true, false, false).
				AddRow("bob", "Bob", 0, 0, false, true, false, 1, time.Now(), time.Now()))

		w := httptest.NewRecorder()
		handler.List(w, actorRequest(http.MethodGet, "/api/v1/accounts", "", ledger.Actor{ID: "root", DisplayName: "Root"}))

		assert.Equal(t, http.StatusOK, w.Code)
		var accounts []models.Account
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
		assert.Len(t, accounts, 2)
		assert.Equal(t, models.StatusActive, accounts[0].Status())
		assert.Equal(t, models.StatusBlocked, accounts[1].Status())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
