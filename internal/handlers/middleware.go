package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/contactsbook/apiserver/internal/services"
	"github.com/contactsbook/apiserver/types"
)

// Authenticator resolves the owner of an access token.
type Authenticator interface {
	CurrentUser(ctx context.Context, accessToken string) (types.User, error)
}

// RequireUser authenticates the bearer access token and stores the user in
// the request context.
func RequireUser(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, services.MsgInvalidCredentials)
				return
			}

			user, err := authn.CurrentUser(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}
