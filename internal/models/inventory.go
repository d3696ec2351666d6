package models

import "time"

// InventoryRowID is the fixed key of the single inventory row. The global
// counter is a normal keyed record so it goes through the same transactional
// path as account rows.
const InventoryRowID = 1

type Inventory struct {
	TotalUnits int64     `json:"total_units" db:"total_units"`
	Version    int       `json:"-" db:"version"` // for optimistic locking
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
