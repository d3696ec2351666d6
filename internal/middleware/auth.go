package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/matekasse/backend/internal/ledger"
)

type contextKey string

const actorContextKey contextKey = "actor"

// ActorAuth resolves the acting identity from a signed bearer token minted by
// the chat gateway. The token carries the opaque actor id and a best-effort
// display name; authorization against account state happens later, in the
// gate, not here.
func ActorAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		actor, err := parseActorToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor returns a context carrying the actor, as ActorAuth sets it.
func WithActor(ctx context.Context, actor ledger.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the actor resolved by ActorAuth.
func ActorFromContext(ctx context.Context) (ledger.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(ledger.Actor)
	return actor, ok
}

func parseActorToken(tokenString string) (ledger.Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(viper.GetString("auth.token_secret")), nil
	})
	if err != nil || !token.Valid {
		return ledger.Actor{}, fmt.Errorf("parsing actor token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ledger.Actor{}, fmt.Errorf("unexpected claims type")
	}

	id, _ := claims["actor_id"].(string)
	if id == "" {
		return ledger.Actor{}, fmt.Errorf("missing actor_id claim")
	}
	name, _ := claims["display_name"].(string)

	return ledger.Actor{ID: id, DisplayName: name}, nil
}
