package models

import "time"

// AccountStatus is the effective lifecycle state of an account as seen by
// the authorization gate. Admin is an orthogonal flag on top of StatusActive.
type AccountStatus string

const (
	StatusUnknown AccountStatus = "unknown" // no account row exists
	StatusPending AccountStatus = "pending" // registered, awaiting approval
	StatusActive  AccountStatus = "active"
	StatusBlocked AccountStatus = "blocked"
)

type Account struct {
	ID               string    `json:"id" db:"id"`
	DisplayName      string    `json:"display_name" db:"display_name"`
	Balance          int64     `json:"balance" db:"balance"`
	DepositLiability int64     `json:"deposit_liability" db:"deposit_liability"`
	Enabled          bool      `json:"enabled" db:"enabled"`
	Blocked          bool      `json:"blocked" db:"blocked"`
	Admin            bool      `json:"admin" db:"is_admin"`
	Version          int       `json:"-" db:"version"` // for optimistic locking
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Status folds the enabled/blocked pair into the lifecycle state.
// Invariant: blocked implies not enabled, so blocked wins over enabled.
func (a *Account) Status() AccountStatus {
	switch {
	case a == nil:
		return StatusUnknown
	case a.Blocked:
		return StatusBlocked
	case a.Enabled:
		return StatusActive
	default:
		return StatusPending
	}
}
