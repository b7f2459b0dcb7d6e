// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/rulepost/internal/app/system/auth"
	"github.com/dalemusser/rulepost/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), team, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "visitor", "", NilObjectID, false, so ok=true always means a valid user.
func UserCtx(r *http.Request) (role string, team string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := user.ObjectID()
	if err != nil {
		// Malformed user ID in session; fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Team, userID, true
}

// Caller converts the request's user into the identity services act as.
func Caller(r *http.Request) (models.Caller, bool) {
	role, team, id, ok := UserCtx(r)
	if !ok {
		return models.Caller{}, false
	}
	return models.Caller{UserID: id, Role: role, Team: team}, true
}

// IsAdmin reports whether the current request's user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsRC reports whether the current request's user belongs to the Rules Committee.
func IsRC(r *http.Request) bool {
	_, team, _, ok := UserCtx(r)
	return ok && team == models.TeamRC
}

// IsPrivileged reports whether the user may run committee actions.
func IsPrivileged(r *http.Request) bool {
	return IsAdmin(r) || IsRC(r)
}

// Team returns the current user's team, or "" when not signed in.
func Team(r *http.Request) string {
	_, team, _, _ := UserCtx(r)
	return team
}
