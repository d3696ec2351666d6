package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/ledger"
	"github.com/matekasse/backend/internal/notify"
)

// AnnounceHandler broadcasts admin messages to users.
type AnnounceHandler struct {
	authHelper
	registry  *ledger.Registry
	notifier  *notify.Notifier
	validator *ValidationHelper
	log       *zap.Logger
}

func NewAnnounceHandler(registry *ledger.Registry, gate *ledger.Gate, notifier *notify.Notifier, logger *zap.Logger) *AnnounceHandler {
	return &AnnounceHandler{
		authHelper: authHelper{gate: gate},
		registry:   registry,
		notifier:   notifier,
		validator:  NewValidationHelper(),
		log:        logger,
	}
}

// Announce sends a message to the listed targets, or to every active account
// when no targets are given. Delivery is best-effort.
func (h *AnnounceHandler) Announce(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string   `json:"message" validate:"required"`
		Targets []string `json:"targets" validate:"omitempty,dive,required"`
	}
	if !decode(w, r, h.validator, &req) {
		return
	}

	ids := req.Targets
	if len(ids) == 0 {
		var err error
		ids, err = h.registry.EnabledIDs(r.Context())
		if err != nil {
			SendLedgerError(w, err)
			return
		}
	} else {
		resolved := make([]string, 0, len(ids))
		for _, t := range ids {
			account, err := resolveTarget(r.Context(), h.registry, t)
			if err != nil {
				SendLedgerError(w, err)
				return
			}
			resolved = append(resolved, account.ID)
		}
		ids = resolved
	}

	h.notifier.Broadcast(r.Context(), ids, req.Message)
	h.log.Info("announcement sent",
		zap.String("author", admin.ID), zap.Int("recipients", len(ids)))
	WriteJSON(w, http.StatusAccepted, map[string]int{"recipients": len(ids)})
}
