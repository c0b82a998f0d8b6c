package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nevc-media/vidstream/catalog/internal/models"
)

var (
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal error")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// BadRequestReason names why a request was rejected before any side effect.
type BadRequestReason string

const (
	ReasonEmptyFile           BadRequestReason = "empty_file"
	ReasonIDOnCreate          BadRequestReason = "id_on_create"
	ReasonIDMismatch          BadRequestReason = "id_mismatch"
	ReasonValidationFailed    BadRequestReason = "validation_failed"
	ReasonUnparseableMetadata BadRequestReason = "unparseable_metadata"
)

// BadRequestError carries every violated constraint, not just the first.
type BadRequestError struct {
	Reason     BadRequestReason
	Violations []string
}

func (e *BadRequestError) Error() string {
	if len(e.Violations) == 0 {
		return "bad request: " + string(e.Reason)
	}
	return fmt.Sprintf("bad request: %s: %s", e.Reason, strings.Join(e.Violations, "; "))
}

func BadRequest(reason BadRequestReason, violations ...string) *BadRequestError {
	return &BadRequestError{Reason: reason, Violations: violations}
}

// AsBadRequest unwraps a *BadRequestError from err.
func AsBadRequest(err error) (*BadRequestError, bool) {
	var bre *BadRequestError
	ok := errors.As(err, &bre)
	return bre, ok
}

// internalError wraps a collaborator failure so that errors.Is(err, ErrInternal)
// holds while the cause stays inspectable.
func internalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

// authorize is the first step of every caller-facing operation.
func authorize(caller *models.User, c models.Capability) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if !caller.Can(c) {
		return ErrForbidden
	}
	return nil
}
