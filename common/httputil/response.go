package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MaxJSONBodyBytes caps request bodies decoded by DecodeJSON.
const MaxJSONBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error      string   `json:"error"`
	Code       string   `json:"code,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// WriteJSON writes data as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// WriteError writes a JSON error with a human-readable message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteErrorCode writes a JSON error carrying a machine-readable code and
// optional field violations.
func WriteErrorCode(w http.ResponseWriter, status int, code, message string, violations ...string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code, Violations: violations})
}

// DecodeJSON decodes a single JSON object from r.Body into dst, rejecting
// unknown fields and bodies larger than MaxJSONBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}
