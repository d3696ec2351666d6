package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/models"
)

// Engine applies every balance, deposit and inventory mutation. Each
// operation runs as one database transaction: the counter updates and their
// audit-log appends commit together or not at all.
//
// Policy choices, fixed for this deployment:
//   - Drink requires balance >= 1, raises the drinker's deposit liability by
//     one and takes one unit out of global inventory.
//   - Admin balance adjustments may take a balance negative.
//   - Deposit adjustments must leave the liability positive.
type Engine struct {
	db  *sql.DB
	log *zap.Logger
}

func NewEngine(db *sql.DB, logger *zap.Logger) *Engine {
	return &Engine{db: db, log: logger}
}

type DrinkResult struct {
	Balance          int64 `json:"balance"`
	DepositLiability int64 `json:"deposit_liability"`
}

type ReturnDepositResult struct {
	DepositLiability int64 `json:"deposit_liability"`
}

type AdjustResult struct {
	OldValue int64 `json:"old_value"`
	NewValue int64 `json:"new_value"`
}

type InventoryResult struct {
	OldValue int64 `json:"old_value"`
	NewValue int64 `json:"new_value"`
	// Undistributed is totalUnits minus the sum of all account balances.
	// Negative means an admin override outran physical stock.
	Undistributed int64 `json:"undistributed"`
}

// Drink consumes one unit for the actor.
func (e *Engine) Drink(ctx context.Context, actorID string) (*DrinkResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Account row first, inventory row last; every engine operation locks in
	// this order to keep lock acquisition deadlock-free.
	account, err := e.lockAccount(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if account.Balance < 1 {
		return nil, newErrorWithCurrent(KindInvariantViolation, "insufficient_balance",
			"balance does not cover a drink", account.Balance)
	}

	inventory, err := e.lockInventory(ctx, tx)
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance - 1
	newDeposit := account.DepositLiability + 1
	if err := e.updateAccountUnits(ctx, tx, actorID, newBalance, newDeposit, account.Version); err != nil {
		return nil, err
	}
	if err := e.updateInventory(ctx, tx, inventory.TotalUnits-1, inventory.Version); err != nil {
		return nil, err
	}

	ref := uuid.NewString()
	if err := e.appendTransaction(ctx, tx, ref, &actorID, actorID, -1, models.KindBalance); err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, tx, ref, &actorID, actorID, +1, models.KindDeposit); err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, tx, ref, nil, actorID, -1, models.KindInventory); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing drink: %w", err)
	}
	return &DrinkResult{Balance: newBalance, DepositLiability: newDeposit}, nil
}

// ReturnDeposit settles amount returnable deposits for the actor.
func (e *Engine) ReturnDeposit(ctx context.Context, actorID string, amount int64) (*ReturnDepositResult, error) {
	if amount <= 0 {
		return nil, newError(KindInvalidInput, "invalid_amount", "amount must be a positive integer")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := e.lockAccount(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if amount > account.DepositLiability {
		return nil, newErrorWithCurrent(KindInvariantViolation, "insufficient_deposit",
			"amount exceeds outstanding deposit liability", account.DepositLiability)
	}

	newDeposit := account.DepositLiability - amount
	if err := e.updateAccountUnits(ctx, tx, actorID, account.Balance, newDeposit, account.Version); err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, tx, uuid.NewString(), &actorID, actorID, -amount, models.KindDeposit); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing deposit return: %w", err)
	}
	return &ReturnDepositResult{DepositLiability: newDeposit}, nil
}

// AdjustBalance resolves the delta against the target's balance and records
// the difference, attributed to the author. Negative results are allowed.
func (e *Engine) AdjustBalance(ctx context.Context, targetID, authorID string, delta Delta) (*AdjustResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := e.lockAccount(ctx, tx, targetID)
	if err != nil {
		return nil, err
	}

	newValue := delta.Resolve(account.Balance)
	if err := e.updateAccountUnits(ctx, tx, targetID, newValue, account.DepositLiability, account.Version); err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, tx, uuid.NewString(), &targetID, authorID,
		newValue-account.Balance, models.KindBalance); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing balance adjustment: %w", err)
	}
	return &AdjustResult{OldValue: account.Balance, NewValue: newValue}, nil
}

// AdjustDeposit resolves the delta against the target's deposit liability.
// The result must stay positive; ReturnDeposit is the only path to zero.
func (e *Engine) AdjustDeposit(ctx context.Context, targetID, authorID string, delta Delta) (*AdjustResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	account, err := e.lockAccount(ctx, tx, targetID)
	if err != nil {
		return nil, err
	}

	newValue := delta.Resolve(account.DepositLiability)
	if newValue <= 0 {
		return nil, newErrorWithCurrent(KindInvariantViolation, "invalid_deposit",
			"deposit liability must stay positive", account.DepositLiability)
	}

	if err := e.updateAccountUnits(ctx, tx, targetID, account.Balance, newValue, account.Version); err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, tx, uuid.NewString(), &targetID, authorID,
		newValue-account.DepositLiability, models.KindDeposit); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing deposit adjustment: %w", err)
	}
	return &AdjustResult{OldValue: account.DepositLiability, NewValue: newValue}, nil
}

// AdjustInventory resolves the delta against the global inventory counter.
// The result also reports how many units remain undistributed so the caller
// can surface an under-stock warning.
func (e *Engine) AdjustInventory(ctx context.Context, authorID string, delta Delta) (*InventoryResult, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inventory, err := e.lockInventory(ctx, tx)
	if err != nil {
		return nil, err
	}

	newValue := delta.Resolve(inventory.TotalUnits)
	if err := e.updateInventory(ctx, tx, newValue, inventory.Version); err != nil {
		return nil, err
	}
	if err := e.appendTransaction(ctx, tx, uuid.NewString(), nil, authorID,
		newValue-inventory.TotalUnits, models.KindInventory); err != nil {
		return nil, err
	}

	var distributed int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(balance), 0) FROM accounts`).Scan(&distributed); err != nil {
		return nil, fmt.Errorf("summing balances: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing inventory adjustment: %w", err)
	}
	return &InventoryResult{
		OldValue:      inventory.TotalUnits,
		NewValue:      newValue,
		Undistributed: newValue - distributed,
	}, nil
}

// Inventory reads the current inventory counter.
func (e *Engine) Inventory(ctx context.Context) (*models.Inventory, error) {
	var inv models.Inventory
	err := e.db.QueryRowContext(ctx,
		`SELECT total_units, version, updated_at FROM inventory WHERE id = $1`,
		models.InventoryRowID).Scan(&inv.TotalUnits, &inv.Version, &inv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("reading inventory: %w", err)
	}
	return &inv, nil
}

func (e *Engine) lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*models.Account, error) {
	var a models.Account
	err := tx.QueryRowContext(ctx, `
		SELECT id, balance, deposit_liability, version
		FROM accounts
		WHERE id = $1
		FOR UPDATE`, accountID).
		Scan(&a.ID, &a.Balance, &a.DepositLiability, &a.Version)
	if err == sql.ErrNoRows {
		return nil, newError(KindNotFound, "account_not_found", "account not found")
	}
	if err != nil {
		return nil, fmt.Errorf("locking account %s: %w", accountID, err)
	}
	return &a, nil
}

func (e *Engine) lockInventory(ctx context.Context, tx *sql.Tx) (*models.Inventory, error) {
	var inv models.Inventory
	err := tx.QueryRowContext(ctx, `
		SELECT total_units, version
		FROM inventory
		WHERE id = $1
		FOR UPDATE`, models.InventoryRowID).
		Scan(&inv.TotalUnits, &inv.Version)
	if err != nil {
		return nil, fmt.Errorf("locking inventory: %w", err)
	}
	return &inv, nil
}

func (e *Engine) updateAccountUnits(ctx context.Context, tx *sql.Tx, accountID string, balance, deposit int64, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, deposit_liability = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5`,
		balance, deposit, time.Now(), accountID, version)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", accountID, err)
	}
	return checkOptimisticLock(result, "account "+accountID)
}

func (e *Engine) updateInventory(ctx context.Context, tx *sql.Tx, totalUnits int64, version int) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET total_units = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`,
		totalUnits, time.Now(), models.InventoryRowID, version)
	if err != nil {
		return fmt.Errorf("updating inventory: %w", err)
	}
	return checkOptimisticLock(result, "inventory")
}

func (e *Engine) appendTransaction(ctx context.Context, tx *sql.Tx, reference string, subjectID *string, authorID string, delta int64, kind models.TransactionKind) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (reference, subject_account_id, author_account_id, delta, kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		reference, subjectID, authorID, delta, kind, time.Now())
	if err != nil {
		return fmt.Errorf("appending %s transaction: %w", kind, err)
	}
	return nil
}

func checkOptimisticLock(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return newError(KindConflict, "version_conflict", "concurrent update on "+what)
	}
	return nil
}
