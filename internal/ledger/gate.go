package ledger

import (
	"context"

	"go.uber.org/zap"

	"github.com/matekasse/backend/internal/models"
)

// Actor is the transport-resolved identity of an inbound request. The id is
// opaque and stable; the display name is best-effort and may be stale.
type Actor struct {
	ID          string
	DisplayName string
}

// Gate is the single place account status is turned into an allow/deny
// decision. Handlers never re-derive admin or enabled state themselves.
type Gate struct {
	registry *Registry
	log      *zap.Logger
}

func NewGate(registry *Registry, logger *zap.Logger) *Gate {
	return &Gate{registry: registry, log: logger}
}

// AuthorizeUser admits active accounts. The failure code distinguishes
// unregistered, pending and blocked actors so the transport can offer the
// right next step (e.g. a registration prompt).
func (g *Gate) AuthorizeUser(ctx context.Context, actor Actor) (*models.Account, error) {
	account, err := g.lookup(ctx, actor)
	if err != nil {
		return nil, err
	}

	switch account.Status() {
	case models.StatusActive:
		return account, nil
	case models.StatusBlocked:
		return nil, newError(KindNotAuthorized, "blocked", "account is blocked")
	default:
		return nil, newError(KindNotAuthorized, "pending", "account is awaiting approval")
	}
}

// AuthorizeAdmin admits active accounts carrying the admin flag.
func (g *Gate) AuthorizeAdmin(ctx context.Context, actor Actor) (*models.Account, error) {
	account, err := g.lookup(ctx, actor)
	if err != nil {
		return nil, err
	}

	if account.Status() != models.StatusActive || !account.Admin {
		return nil, newError(KindNotAuthorized, "not_admin", "admin privileges required")
	}
	return account, nil
}

// lookup fetches the actor's account and opportunistically syncs the display
// name. Sync failures are logged, never surfaced; identity data is advisory.
func (g *Gate) lookup(ctx context.Context, actor Actor) (*models.Account, error) {
	account, err := g.registry.Get(ctx, actor.ID)
	if IsKind(err, KindNotFound) {
		return nil, newError(KindNotAuthorized, "not_registered", "actor has no account")
	}
	if err != nil {
		return nil, err
	}

	if actor.DisplayName != "" && actor.DisplayName != account.DisplayName {
		if err := g.registry.SyncDisplayName(ctx, actor.ID, actor.DisplayName); err != nil {
			g.log.Warn("display name sync failed",
				zap.String("account_id", actor.ID), zap.Error(err))
		} else {
			account.DisplayName = actor.DisplayName
		}
	}
	return account, nil
}
