package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nevc-media/vidstream/catalog/internal/service"
	"github.com/nevc-media/vidstream/common/httputil"
	"github.com/nevc-media/vidstream/common/logging"
)

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// Internal causes are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if bre, ok := service.AsBadRequest(err); ok {
		httputil.WriteErrorCode(w, http.StatusBadRequest, string(bre.Reason), bre.Error(), bre.Violations...)
		return
	}

	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="vidstream"`)
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
	case errors.Is(err, service.ErrInvalidCredentials):
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
	case errors.Is(err, service.ErrForbidden):
		httputil.WriteErrorCode(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, service.ErrNotFound):
		httputil.WriteErrorCode(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, service.ErrConflict):
		httputil.WriteErrorCode(w, http.StatusConflict, "conflict", "already exists")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logging.Error(err))
		httputil.WriteErrorCode(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		httputil.WriteErrorCode(w, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
		return
	}
	httputil.WriteErrorCode(w, http.StatusBadRequest, "invalid_body", err.Error())
}
