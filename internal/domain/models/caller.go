// internal/domain/models/caller.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Caller is the identity an action runs as. Services take a Caller
// rather than an HTTP request so the scheduler and CLI can act too.
type Caller struct {
	UserID primitive.ObjectID
	Role   string
	Team   string
}

// IsAdmin reports whether the caller carries the admin role.
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// IsRC reports whether the caller belongs to the Rules Committee.
func (c Caller) IsRC() bool { return c.Team == TeamRC }

// Privileged reports whether the caller may run committee actions.
func (c Caller) Privileged() bool { return c.IsAdmin() || c.IsRC() }
