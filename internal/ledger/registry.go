package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/models"
)

const accountColumns = `id, display_name, balance, deposit_liability, enabled, blocked, is_admin, version, created_at, updated_at`

// Registry owns account lookup, creation and lifecycle transitions. It never
// touches balances; unit movement is the engine's job.
type Registry struct {
	db  *sql.DB
	log *zap.Logger
}

func NewRegistry(db *sql.DB, logger *zap.Logger) *Registry {
	return &Registry{db: db, log: logger}
}

// Get returns the account with the given actor id.
func (r *Registry) Get(ctx context.Context, id string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// GetByDisplayName resolves an account by its (transport-synced) display name.
func (r *Registry) GetByDisplayName(ctx context.Context, name string) (*models.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE display_name = $1 LIMIT 1`, name)
	return scanAccount(row)
}

// Register creates a pending account for the actor. Registering while already
// pending or blocked is idempotent and returns the existing account; an
// enabled account fails with AlreadyInState.
func (r *Registry) Register(ctx context.Context, actorID, displayName string) (*models.Account, error) {
	existing, err := r.Get(ctx, actorID)
	switch {
	case err == nil:
		if existing.Enabled {
			return nil, newError(KindAlreadyInState, "already_active", "account is already active")
		}
		return existing, nil
	case !IsKind(err, KindNotFound):
		return nil, err
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING `+accountColumns, actorID, displayName)
	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}

	r.log.Info("registration requested",
		zap.String("account_id", actorID),
		zap.String("display_name", displayName))
	return account, nil
}

// Approve enables the target and clears any block. Approving an already
// enabled account is a no-op failing with AlreadyInState.
func (r *Registry) Approve(ctx context.Context, targetID string) (*models.Account, error) {
	return r.transition(ctx, targetID, func(a *models.Account) error {
		if a.Enabled {
			return newError(KindAlreadyInState, "already_active", "account is already active")
		}
		a.Enabled = true
		a.Blocked = false
		return nil
	})
}

// Reject blocks the target. Rejecting an already blocked account is a no-op
// failing with AlreadyInState.
func (r *Registry) Reject(ctx context.Context, targetID string) (*models.Account, error) {
	return r.transition(ctx, targetID, func(a *models.Account) error {
		if a.Blocked {
			return newError(KindAlreadyInState, "already_blocked", "account is already blocked")
		}
		a.Enabled = false
		a.Blocked = true
		return nil
	})
}

// SetAdmin grants or revokes the admin flag.
func (r *Registry) SetAdmin(ctx context.Context, targetID string, isAdmin bool) (*models.Account, error) {
	return r.transition(ctx, targetID, func(a *models.Account) error {
		if a.Admin == isAdmin {
			return newError(KindAlreadyInState, "admin_unchanged", "admin flag already has that value")
		}
		a.Admin = isAdmin
		return nil
	})
}

// SetBlocked blocks or unblocks the target. Unblocking re-enables the
// account, blocking disables it.
func (r *Registry) SetBlocked(ctx context.Context, targetID string, blocked bool) (*models.Account, error) {
	return r.transition(ctx, targetID, func(a *models.Account) error {
		if a.Blocked == blocked {
			return newError(KindAlreadyInState, "blocked_unchanged", "blocked flag already has that value")
		}
		a.Blocked = blocked
		a.Enabled = !blocked
		return nil
	})
}

// SyncDisplayName writes the observed name only when it differs from the
// stored one. Called opportunistically on every authorized interaction.
func (r *Registry) SyncDisplayName(ctx context.Context, actorID, observedName string) error {
	if observedName == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET display_name = $1, updated_at = $2
		WHERE id = $3 AND display_name <> $1`,
		observedName, time.Now(), actorID)
	if err != nil {
		return fmt.Errorf("syncing display name: %w", err)
	}
	return nil
}

// List returns all accounts ordered by display name.
func (r *Registry) List(ctx context.Context) ([]models.Account, error) {
	return r.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY display_name, id`)
}

// Admins returns all accounts carrying the admin flag.
func (r *Registry) Admins(ctx context.Context) ([]models.Account, error) {
	return r.queryAccounts(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE is_admin ORDER BY display_name, id`)
}

// EnabledIDs returns the ids of all active accounts, for broadcast fan-out.
func (r *Registry) EnabledIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM accounts WHERE enabled AND NOT blocked ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing enabled accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EnsureAdmin creates an enabled admin account if the actor has none yet, and
// promotes an existing one. Used to bootstrap the first admin from config.
func (r *Registry) EnsureAdmin(ctx context.Context, actorID, displayName string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, display_name, enabled, is_admin)
		VALUES ($1, $2, TRUE, TRUE)
		ON CONFLICT (id) DO UPDATE
		SET enabled = TRUE, blocked = FALSE, is_admin = TRUE, updated_at = now()`,
		actorID, displayName)
	if err != nil {
		return fmt.Errorf("ensuring admin account: %w", err)
	}
	return nil
}

// transition runs a lifecycle mutation under a row lock so concurrent admin
// actions on the same account cannot interleave.
func (r *Registry) transition(ctx context.Context, targetID string, mutate func(*models.Account) error) (*models.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, targetID)
	account, err := scanAccount(row)
	if err != nil {
		return nil, err
	}

	if err := mutate(account); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET enabled = $1, blocked = $2, is_admin = $3, updated_at = $4
		WHERE id = $5`,
		account.Enabled, account.Blocked, account.Admin, time.Now(), targetID)
	if err != nil {
		return nil, fmt.Errorf("updating account %s: %w", targetID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transition: %w", err)
	}
	return account, nil
}

func (r *Registry) queryAccounts(ctx context.Context, query string) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.Balance, &a.DepositLiability,
			&a.Enabled, &a.Blocked, &a.Admin, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.DisplayName, &a.Balance, &a.DepositLiability,
		&a.Enabled, &a.Blocked, &a.Admin, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "account_not_found", "account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}
	return &a, nil
}
