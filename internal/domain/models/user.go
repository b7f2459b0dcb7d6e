// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles. Only admin carries privileges in the enquiry workflow; the RC
// privilege comes from Team == TeamRC.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is a participant. Accounts are provisioned outside this service;
// this service only reads role, team and the notification preference.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName             string             `bson:"full_name" json:"full_name"`
	FullNameCI           string             `bson:"full_name_ci" json:"full_name_ci"`
	Email                string             `bson:"email" json:"email"`
	Role                 string             `bson:"role" json:"role"` // admin | user
	Team                 string             `bson:"team" json:"team"`
	EmailNotificationsOn bool               `bson:"email_notifications_on" json:"email_notifications_on"`
	Status               string             `bson:"status,omitempty" json:"status,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsRC reports whether the user belongs to the Rules Committee.
func (u *User) IsRC() bool { return u.Team == TeamRC }
