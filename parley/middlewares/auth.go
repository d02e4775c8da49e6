package middlewares

import (
	"context"
	"net/http"
	"strings"

	"parley/parley/services/auth"
	"parley/parley/utils/apperr"
	httputils "parley/parley/utils/http"
)

type contextKey string

const IdentityKey contextKey = "identity"

// AuthMiddleware admits only requests carrying a valid `Bearer <token>` session token.
func AuthMiddleware(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				httputils.WriteError(w, r, apperr.New(apperr.Unauthenticated, "No token provided. Please login."))
				return
			}
			id, err := tokens.Parse(tokenStr)
			if err != nil {
				httputils.WriteError(w, r, err)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(auth.Identity)
	return id, ok
}
