// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/rulepost/internal/app/system/apperr"
	"github.com/dalemusser/rulepost/internal/app/system/authz"
)

// Handler serves the pages auth middleware redirects browsers to.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden handles GET /forbidden.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	msg := "You don't have permission to perform this action."
	if !authz.IsPrivileged(r) && authz.Team(r) == "" {
		msg = "No team assigned to this user."
	}
	JSON(w, http.StatusForbidden, errorBody{Error: errorDetail{Code: apperr.PermissionDenied, Message: msg}})
}

// Unauthorized handles GET /unauthorized.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Code: apperr.Unauthenticated, Message: "Please sign in to continue."}})
}
