// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/gatehouse-io/gatehouse/internal/scope"
	"github.com/gatehouse-io/gatehouse/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Validation and conflict errors surface with their message; anything
// unrecognized is a 500 with no detail leaked.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scope.ErrInvalidScope):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Scope", err.Error())
	case errors.Is(err, shared.ErrDuplicateAssignment),
		errors.Is(err, shared.ErrDuplicateSlug):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrRoleNotFound),
		errors.Is(err, shared.ErrPermissionNotFound),
		errors.Is(err, shared.ErrAssignmentNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
