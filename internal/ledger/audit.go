package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matekasse/backend/internal/models"
)

// PageSize is the fixed number of audit entries per history page.
const PageSize = 10

// Audit serves paginated reads over the append-only transaction log.
type Audit struct {
	db *sql.DB
}

func NewAudit(db *sql.DB) *Audit {
	return &Audit{db: db}
}

type HistoryFilter struct {
	// AccountID restricts the result to transactions with that subject.
	// Empty matches everything, including inventory-only entries.
	AccountID string
}

type HistoryPage struct {
	Entries    []models.Transaction `json:"entries"`
	Page       int                  `json:"page"`
	TotalPages int                  `json:"total_pages"`
}

// History returns one page of transactions, ordered oldest first. Pages are
// 0-based; a nil page means the last (most recent) page, out-of-range pages
// clamp. An empty match is a valid result with TotalPages 0.
func (a *Audit) History(ctx context.Context, filter HistoryFilter, page *int) (*HistoryPage, error) {
	where := ""
	args := []any{}
	if filter.AccountID != "" {
		where = " WHERE subject_account_id = $1"
		args = append(args, filter.AccountID)
	}

	var count int
	if err := a.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions`+where, args...).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting transactions: %w", err)
	}

	totalPages := (count + PageSize - 1) / PageSize
	if totalPages == 0 {
		return &HistoryPage{Entries: []models.Transaction{}, Page: 0, TotalPages: 0}, nil
	}
	resolved := resolvePage(page, totalPages)

	// created_at alone is not unique; the monotonic id breaks ties so
	// repeated calls paginate identically.
	query := fmt.Sprintf(`
		SELECT id, reference, subject_account_id, author_account_id, delta, kind, created_at
		FROM transactions%s
		ORDER BY created_at ASC, id ASC
		LIMIT %d OFFSET %d`, where, PageSize, resolved*PageSize)

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	entries := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Reference, &t.SubjectID, &t.AuthorID,
			&t.Delta, &t.Kind, &t.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &HistoryPage{Entries: entries, Page: resolved, TotalPages: totalPages}, nil
}

// resolvePage clamps a requested page into [0, totalPages-1], defaulting to
// the last page when none was requested.
func resolvePage(requested *int, totalPages int) int {
	if requested == nil {
		return totalPages - 1
	}
	switch {
	case *requested < 0:
		return 0
	case *requested >= totalPages:
		return totalPages - 1
	default:
		return *requested
	}
}
