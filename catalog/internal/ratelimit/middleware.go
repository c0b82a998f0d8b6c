package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/nevc-media/vidstream/common/httputil"
	"github.com/nevc-media/vidstream/common/logging"
)

// KeyFunc derives the throttling key for a request.
type KeyFunc func(r *http.Request) string

// ByClientIP keys on the client address resolved by the RequestContext
// middleware, falling back to the connecting peer without its port.
func ByClientIP(r *http.Request) string {
	rc := httputil.GetRequestContext(r.Context())
	if rc == nil {
		rc = httputil.NewRequestContext(r, nil)
	}
	if ip := rc.IPString(); ip != "" {
		return ip
	}
	return "unknown"
}

// Middleware rejects throttled requests with 429. A limiter error lets the
// request through so a Redis outage cannot lock everyone out.
func Middleware(l Limiter, key KeyFunc, retryAfter time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			allowed, err := l.Allow(r.Context(), k)
			if err != nil {
				slog.WarnContext(r.Context(), "rate limiter unavailable", logging.IP(k), logging.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
				httputil.WriteErrorCode(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
