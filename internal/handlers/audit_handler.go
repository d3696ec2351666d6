package handlers

import (
	"net/http"
	"strconv"

	"github.com/matekasse/backend/internal/ledger"
)

// AuditHandler serves the paginated transaction history.
type AuditHandler struct {
	authHelper
	audit    *ledger.Audit
	registry *ledger.Registry
}

func NewAuditHandler(audit *ledger.Audit, registry *ledger.Registry, gate *ledger.Gate) *AuditHandler {
	return &AuditHandler{
		authHelper: authHelper{gate: gate},
		audit:      audit,
		registry:   registry,
	}
}

// History returns one page of audit entries. Users see their own history;
// admins may pass ?target= to inspect any account or the whole log.
func (h *AuditHandler) History(w http.ResponseWriter, r *http.Request) {
	account, ok := h.user(w, r)
	if !ok {
		return
	}

	filter := ledger.HistoryFilter{AccountID: account.ID}
	if targetParam := r.URL.Query().Get("target"); targetParam != "" || r.URL.Query().Has("all") {
		if _, ok := h.admin(w, r); !ok {
			return
		}
		filter.AccountID = ""
		if targetParam != "" {
			target, err := resolveTarget(r.Context(), h.registry, targetParam)
			if err != nil {
				SendLedgerError(w, err)
				return
			}
			filter.AccountID = target.ID
		}
	}

	var page *int
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		n, err := strconv.Atoi(pageParam)
		if err != nil {
			SendErrorResponse(w, "page must be an integer", http.StatusBadRequest, nil)
			return
		}
		page = &n
	}

	result, err := h.audit.History(r.Context(), filter, page)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
