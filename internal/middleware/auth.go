package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/imagehost/service/internal/response"
	"github.com/imagehost/service/internal/user"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// userKey is the context key for the authenticated user record.
const userKey contextKey = "user"

// TokenDecoder verifies a bearer token and extracts the user id it carries.
type TokenDecoder interface {
	DecodeToken(token string) (int64, error)
}

// UserResolver loads a user record by id.
type UserResolver interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// RequireAuth returns middleware that validates a Bearer JWT, resolves the
// embedded user id to an existing account, and injects the user record into
// the request context. A valid token for a since-deleted account is rejected.
func RequireAuth(tokens TokenDecoder, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				response.Unauthorized(w, "invalid authorization header format")
				return
			}

			userID, err := tokens.DecodeToken(parts[1])
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			u, err := users.GetByID(r.Context(), userID)
			if err != nil {
				response.Unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates a route to admin accounts. Must be mounted after
// RequireAuth. A missing or false admin flag is a 403, never an error.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			response.Unauthorized(w, "authentication required")
			return
		}
		if !u.IsAdmin {
			response.Forbidden(w, "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext returns the authenticated user stored by RequireAuth.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userKey).(*user.User)
	return u, ok
}
