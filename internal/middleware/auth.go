package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pliu/quachat/internal/auth"
	"github.com/pliu/quachat/internal/models"
)

type contextKey string

const UserKey contextKey = "user"

// UserResolver looks up the user holding a bearer token. It returns nil for an
// unknown token.
type UserResolver interface {
	GetUser(ctx context.Context, token string) (*models.User, error)
}

// AuthMiddleware binds the caller to the request context. Requests without a
// credential, or with one nobody holds, pass through anonymously; the operations
// decide what an anonymous caller may do.
func AuthMiddleware(users UserResolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), token)
			if err != nil {
				log.Error("Error resolving user", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns ctx carrying user. A nil user leaves ctx anonymous.
func WithUser(ctx context.Context, user *models.User) context.Context {
	if user == nil {
		return ctx
	}
	return context.WithValue(ctx, UserKey, user)
}

// UserFromContext returns the caller, or nil when anonymous.
func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserKey).(*models.User)
	return user
}
