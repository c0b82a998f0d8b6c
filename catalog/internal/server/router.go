package server

import (
	"context"
	"net/http"
	"time"

	"github.com/nevc-media/vidstream/catalog/internal/handlers"
	"github.com/nevc-media/vidstream/catalog/internal/metrics"
	"github.com/nevc-media/vidstream/catalog/internal/middleware"
	"github.com/nevc-media/vidstream/catalog/internal/models"
	"github.com/nevc-media/vidstream/catalog/internal/ratelimit"
	"github.com/nevc-media/vidstream/common/httputil"
	commonmw "github.com/nevc-media/vidstream/common/middleware"
)

// Pinger reports whether the system of record is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Auth   *handlers.AuthHandler
	Videos *handlers.VideoHandler
	Authn  *middleware.AuthMiddleware
	Health Pinger

	// LoginLimiter throttles login attempts per client IP. Nil disables it.
	LoginLimiter ratelimit.Limiter
	RetryAfter   time.Duration

	CORS commonmw.CORSConfig

	// Proxies whose forwarding headers identify the client. Nil trusts none.
	Proxies httputil.TrustedProxies
}

// NewRouter constructs a ServeMux with the catalog API registered.
func NewRouter(o Options) http.Handler {
	mux := http.NewServeMux()
	need := o.Authn.RequireCapability

	var login http.Handler = http.HandlerFunc(o.Auth.Login)
	if o.LoginLimiter != nil {
		login = ratelimit.Middleware(o.LoginLimiter, ratelimit.ByClientIP, o.RetryAfter)(login)
	}

	// Authentication
	mux.HandleFunc("POST /api/v1/auth/register", o.Auth.Register)
	mux.Handle("POST /api/v1/auth/login", login)
	mux.HandleFunc("POST /api/v1/auth/logout", o.Auth.Logout)
	mux.HandleFunc("POST /api/v1/auth/validate", o.Auth.ValidateToken)
	mux.Handle("GET /api/v1/auth/me", o.Authn.RequireAuth(http.HandlerFunc(o.Auth.Me)))

	// User management
	mux.Handle("GET /api/v1/users", need(models.CapUsersRead)(http.HandlerFunc(o.Auth.ListUsers)))
	mux.Handle("PUT /api/v1/users/{id}/role", need(models.CapUsersUpdate)(http.HandlerFunc(o.Auth.UpdateUserRole)))

	// Videos
	v := o.Videos
	mux.Handle("POST /api/v1/videos", need(models.CapVideosPublish)(http.HandlerFunc(v.Publish)))
	mux.Handle("GET /api/v1/videos", need(models.CapVideosRead)(http.HandlerFunc(v.List)))
	mux.Handle("GET /api/v1/videos/search/title", need(models.CapVideosRead)(http.HandlerFunc(v.SearchByTitle)))
	mux.Handle("GET /api/v1/videos/search/director", need(models.CapVideosRead)(http.HandlerFunc(v.SearchByDirector)))
	mux.Handle("GET /api/v1/videos/search/mainActor", need(models.CapVideosRead)(http.HandlerFunc(v.SearchByMainActor)))
	mux.Handle("GET /api/v1/videos/search/genre", need(models.CapVideosRead)(http.HandlerFunc(v.SearchByGenre)))
	mux.Handle("GET /api/v1/videos/search/runningTime", need(models.CapVideosRead)(http.HandlerFunc(v.SearchByRunningTime)))
	mux.Handle("GET /api/v1/videos/{id}", need(models.CapVideosRead)(http.HandlerFunc(v.Get)))
	mux.Handle("PUT /api/v1/videos/{id}", need(models.CapVideosUpdate)(http.HandlerFunc(v.Update)))
	mux.Handle("DELETE /api/v1/videos/{id}", need(models.CapVideosDelete)(http.HandlerFunc(v.Delete)))
	mux.Handle("GET /api/v1/videos/{id}/play", need(models.CapVideosPlay)(http.HandlerFunc(v.Play)))
	mux.Handle("GET /api/v1/videos/{id}/impressions", need(models.CapAuditRead)(http.HandlerFunc(v.Impressions)))
	mux.Handle("GET /api/v1/videos/{id}/views", need(models.CapAuditRead)(http.HandlerFunc(v.Views)))

	// Operations
	mux.HandleFunc("GET /healthz", healthz(o.Health))
	mux.Handle("GET /metrics", metrics.Handler())

	// Instrument wraps the mux directly so it sees the matched pattern.
	var h http.Handler = metrics.Instrument(mux)
	h = middleware.RequestContext(o.Proxies)(h)
	h = commonmw.CORS(o.CORS)(h)
	return commonmw.RequestID(h)
}

func healthz(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}
