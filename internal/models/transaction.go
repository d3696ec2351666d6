package models

import "time"

// TransactionKind tells which counter a transaction row moved.
type TransactionKind string

const (
	KindBalance   TransactionKind = "balance"
	KindDeposit   TransactionKind = "deposit"
	KindInventory TransactionKind = "inventory"
)

// Transaction is one immutable entry of the audit log. Rows are append-only;
// corrections are new rows with the opposite sign, never edits.
type Transaction struct {
	ID        int64           `json:"id" db:"id"`
	Reference string          `json:"reference" db:"reference"`
	SubjectID *string         `json:"subject_account_id,omitempty" db:"subject_account_id"` // nil for inventory entries
	AuthorID  string          `json:"author_account_id" db:"author_account_id"`
	Delta     int64           `json:"delta" db:"delta"`
	Kind      TransactionKind `json:"kind" db:"kind"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
