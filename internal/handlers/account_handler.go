package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/ledger"
	"github.com/matekasse/backend/internal/middleware"
	"github.com/matekasse/backend/internal/notify"
)

// AccountHandler serves registration, lifecycle and listing commands.
type AccountHandler struct {
	authHelper
	registry  *ledger.Registry
	notifier  *notify.Notifier
	validator *ValidationHelper
	log       *zap.Logger
}

func NewAccountHandler(registry *ledger.Registry, gate *ledger.Gate, notifier *notify.Notifier, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		authHelper: authHelper{gate: gate},
		registry:   registry,
		notifier:   notifier,
		validator:  NewValidationHelper(),
		log:        logger,
	}
}

// Register files a registration request for the acting identity and tells
// every admin about it. Idempotent while the request is pending.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "No actor identity", http.StatusUnauthorized, nil)
		return
	}

	account, err := h.registry.Register(r.Context(), actor.ID, actor.DisplayName)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	if admins, err := h.registry.Admins(r.Context()); err != nil {
		h.log.Warn("listing admins for registration fan-out failed", zap.Error(err))
	} else {
		ids := make([]string, 0, len(admins))
		for _, a := range admins {
			if a.ID != actor.ID {
				ids = append(ids, a.ID)
			}
		}
		h.notifier.Broadcast(r.Context(), ids,
			fmt.Sprintf("@%s requested activation", account.DisplayName))
	}

	WriteJSON(w, http.StatusAccepted, account)
}

// Me returns the acting account, gate-checked.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	account, ok := h.user(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// List returns all accounts with their state flags. Admin only.
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	accounts, err := h.registry.List(r.Context())
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, accounts)
}

// Approve enables the target account and notifies it.
func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	target, err := resolveTarget(r.Context(), h.registry, chi.URLParam(r, "target"))
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	account, err := h.registry.Approve(r.Context(), target.ID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	h.notifier.Notify(r.Context(), account.ID,
		fmt.Sprintf("You were activated by @%s. Your balance is %d", admin.DisplayName, account.Balance))
	WriteJSON(w, http.StatusOK, account)
}

// Reject blocks the target account.
func (h *AccountHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	target, err := resolveTarget(r.Context(), h.registry, chi.URLParam(r, "target"))
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	account, err := h.registry.Reject(r.Context(), target.ID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// SetAdmin grants or revokes admin rights on the target.
func (h *AccountHandler) SetAdmin(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	var req struct {
		Admin *bool `json:"admin" validate:"required"`
	}
	if !decode(w, r, h.validator, &req) {
		return
	}

	target, err := resolveTarget(r.Context(), h.registry, chi.URLParam(r, "target"))
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	account, err := h.registry.SetAdmin(r.Context(), target.ID, *req.Admin)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// SetBlocked blocks or unblocks the target. Unblocking re-enables.
func (h *AccountHandler) SetBlocked(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	var req struct {
		Blocked *bool `json:"blocked" validate:"required"`
	}
	if !decode(w, r, h.validator, &req) {
		return
	}

	target, err := resolveTarget(r.Context(), h.registry, chi.URLParam(r, "target"))
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	account, err := h.registry.SetBlocked(r.Context(), target.ID, *req.Blocked)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, account)
}

// decode reads, bounds and validates a JSON request body.
func decode(w http.ResponseWriter, r *http.Request, vh *ValidationHelper, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := vh.ValidateStruct(dst); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
