package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/service"
	"github.com/nevc-media/vidstream/common/httputil"
	"github.com/nevc-media/vidstream/common/logging"
)

type contextKey string

const (
	UserKey  contextKey = "user"
	TokenKey contextKey = "token"
)

// IdentityResolver turns a bearer token into the calling user.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, token string) (*models.User, error)
}

type AuthMiddleware struct {
	resolver IdentityResolver
}

func NewAuthMiddleware(resolver IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireAuth resolves the bearer token to a user and stores it, with the
// raw token, in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="vidstream"`)
			httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthenticated", "missing or malformed authorization header")
			return
		}

		user, err := m.resolver.ResolveIdentity(r.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="vidstream", error="invalid_token"`)
				httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired token")
				return
			}
			slog.ErrorContext(r.Context(), "identity resolution failed", logging.Error(err))
			httputil.WriteErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, user)
		ctx = context.WithValue(ctx, TokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability is RequireAuth plus a role check.
func (m *AuthMiddleware) RequireCapability(c models.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if !user.Can(c) {
				slog.InfoContext(r.Context(), "capability denied",
					logging.UserID(user.ID),
					logging.Role(string(user.Role)),
					slog.String("capability", string(c)))
				httputil.WriteErrorCode(w, http.StatusForbidden, "forbidden", "missing capability "+string(c))
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func UserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserKey).(*models.User)
	return user
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// RequestContext attaches the caller's network origin for audit records and
// rate limiting. Forwarding headers count only from trusted proxies.
func RequestContext(trusted httputil.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := httputil.NewRequestContext(r, trusted)
			next.ServeHTTP(w, r.WithContext(httputil.WithRequestContext(r.Context(), rc)))
		})
	}
}

// OriginFromContext returns the audit origin set by RequestContext, or nil.
func OriginFromContext(ctx context.Context) *models.Origin {
	rc := httputil.GetRequestContext(ctx)
	if rc == nil {
		return nil
	}
	return &models.Origin{IP: rc.IPString(), UserAgent: rc.UserAgent}
}
