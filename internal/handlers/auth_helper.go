package handlers

import (
	"net/http"

	"github.com/matekasse/backend/internal/ledger"
	"github.com/matekasse/backend/internal/middleware"
	"github.com/matekasse/backend/internal/models"
)

// authHelper runs the gate for a request and writes the failure response
// itself, so handlers read as gate-then-work.
type authHelper struct {
	gate *ledger.Gate
}

func (ah authHelper) user(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "No actor identity", http.StatusUnauthorized, nil)
		return nil, false
	}
	account, err := ah.gate.AuthorizeUser(r.Context(), actor)
	if err != nil {
		SendLedgerError(w, err)
		return nil, false
	}
	return account, true
}

func (ah authHelper) admin(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "No actor identity", http.StatusUnauthorized, nil)
		return nil, false
	}
	account, err := ah.gate.AuthorizeAdmin(r.Context(), actor)
	if err != nil {
		SendLedgerError(w, err)
		return nil, false
	}
	return account, true
}
