package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/ledger"
	"github.com/matekasse/backend/internal/notify"
)

// BalanceHandler serves every command that moves units: drinking, deposit
// returns and admin adjustments.
type BalanceHandler struct {
	authHelper
	engine    *ledger.Engine
	registry  *ledger.Registry
	notifier  *notify.Notifier
	validator *ValidationHelper
	log       *zap.Logger
}

func NewBalanceHandler(engine *ledger.Engine, registry *ledger.Registry, gate *ledger.Gate, notifier *notify.Notifier, logger *zap.Logger) *BalanceHandler {
	return &BalanceHandler{
		authHelper: authHelper{gate: gate},
		engine:     engine,
		registry:   registry,
		notifier:   notifier,
		validator:  NewValidationHelper(),
		log:        logger,
	}
}

// Drink consumes one unit for the acting account.
func (h *BalanceHandler) Drink(w http.ResponseWriter, r *http.Request) {
	account, ok := h.user(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Drink(r.Context(), account.ID)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// ReturnDeposit settles returnable deposits; the amount defaults to one.
func (h *BalanceHandler) ReturnDeposit(w http.ResponseWriter, r *http.Request) {
	account, ok := h.user(w, r)
	if !ok {
		return
	}

	// The body is optional; without one the amount defaults to a single unit.
	var req struct {
		Amount *int64 `json:"amount"`
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil && err != io.EOF {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	amount := int64(1)
	if req.Amount != nil {
		amount = *req.Amount
	}

	result, err := h.engine.ReturnDeposit(r.Context(), account.ID, amount)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type adjustRequest struct {
	Spec string `json:"spec" validate:"required"`
}

// AdjustBalance sets or shifts the target's balance and notifies the target.
func (h *BalanceHandler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	delta, err := ledger.ParseDelta(req.Spec)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	target, err := resolveTarget(r.Context(), h.registry, chi.URLParam(r, "target"))
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	result, err := h.engine.AdjustBalance(r.Context(), target.ID, admin.ID, delta)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	h.notifier.Notify(r.Context(), target.ID,
		fmt.Sprintf("Your balance was updated by @%s, new balance: %d", admin.DisplayName, result.NewValue))
	WriteJSON(w, http.StatusOK, result)
}

// AdjustDeposit sets or shifts the target's deposit liability.
func (h *BalanceHandler) AdjustDeposit(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	delta, err := ledger.ParseDelta(req.Spec)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	target, err := resolveTarget(r.Context(), h.registry, chi.URLParam(r, "target"))
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	result, err := h.engine.AdjustDeposit(r.Context(), target.ID, admin.ID, delta)
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

// AdjustInventory sets or shifts the global stock counter.
func (h *BalanceHandler) AdjustInventory(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.admin(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if !decode(w, r, h.validator, &req) {
		return
	}
	delta, err := ledger.ParseDelta(req.Spec)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	result, err := h.engine.AdjustInventory(r.Context(), admin.ID, delta)
	if err != nil {
		SendLedgerError(w, err)
		return
	}

	if result.Undistributed < 0 {
		h.log.Warn("inventory below distributed balances",
			zap.Int64("total_units", result.NewValue),
			zap.Int64("undistributed", result.Undistributed),
			zap.String("author", admin.ID))
	}
	WriteJSON(w, http.StatusOK, result)
}

// Inventory reports the current stock counter.
func (h *BalanceHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.user(w, r); !ok {
		return
	}

	inventory, err := h.engine.Inventory(r.Context())
	if err != nil {
		SendLedgerError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inventory)
}
