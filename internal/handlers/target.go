package handlers

import (
	"context"
	"strings"

	"github.com/matekasse/backend/internal/ledger"
	"github.com/matekasse/backend/internal/models"
)

// resolveTarget turns a command target into an account. "@name" resolves via
// display name the way chat commands address people; anything else is taken
// as a raw actor id.
func resolveTarget(ctx context.Context, registry *ledger.Registry, target string) (*models.Account, error) {
	if target == "" || target == "@" {
		return nil, &ledger.Error{
			Kind:    ledger.KindInvalidInput,
			Code:    "invalid_target",
			Message: "target must be @name or an actor id",
		}
	}
	if strings.HasPrefix(target, "@") {
		return registry.GetByDisplayName(ctx, target[1:])
	}
	return registry.Get(ctx, target)
}
