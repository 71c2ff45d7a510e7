package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/classbeam/liveclass-server-go/internal/audit"
	"github.com/classbeam/liveclass-server-go/internal/auth"
	apperrors "github.com/classbeam/liveclass-server-go/internal/errors"
	"github.com/classbeam/liveclass-server-go/internal/httputil"
	"github.com/classbeam/liveclass-server-go/internal/repository"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

func GetIdentity(ctx context.Context) *auth.Identity {
	if identity, ok := ctx.Value(IdentityContextKey).(*auth.Identity); ok {
		return identity
	}
	return nil
}

// AuthMiddleware verifies the bearer token and attaches the resolved
// identity. Tokens that predate tenant claims get their tenant and name
// filled from storage.
type AuthMiddleware struct {
	verifier *auth.Verifier
	userRepo repository.UserRepository
}

func NewAuthMiddleware(verifier *auth.Verifier, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, userRepo: userRepo}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		identity, err := m.verifier.Verify(token)
		if err != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			httputil.WriteError(w, err)
			return
		}

		if identity.TenantID == "" || identity.Name == "" {
			user, err := m.userRepo.FindByID(r.Context(), identity.UserID)
			if err != nil {
				log.Error().Err(err).Msg("auth middleware: database error")
				httputil.WriteError(w, apperrors.Database(err))
				return
			}
			if user == nil {
				httputil.WriteError(w, apperrors.Unauthorized("Unknown user"))
				return
			}
			if identity.Name == "" {
				identity.Name = user.Name
			}
			if identity.Role == "" {
				identity.Role = user.Role
			}
			if identity.TenantID == "" && user.TenantID != nil {
				identity.TenantID = *user.TenantID
			}
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
