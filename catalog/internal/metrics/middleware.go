package metrics

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nevc-media/vidstream/common/logging"
)

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records latency per route pattern rather than raw path, so ids
// in URLs do not explode label cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		HTTPInFlight.Inc()
		defer HTTPInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(sw.code)).
			Observe(elapsed.Seconds())

		slog.DebugContext(r.Context(), "request completed",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.Status(sw.code),
			logging.Duration(elapsed.Milliseconds()))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
