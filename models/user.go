package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

// Role constants for user authorization.
const (
	RoleUser      Role = "USER"
	RoleLibrarian Role = "LIBRARIAN"
	RoleAdmin     Role = "ADMIN"
)

var ValidRoles = []Role{RoleUser, RoleLibrarian, RoleAdmin}

// IsStaff reports whether the role may run librarian operations.
func (r Role) IsStaff() bool {
	return r == RoleLibrarian || r == RoleAdmin
}

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email" json:"email"`
	Name      string             `bson:"name,omitempty" json:"name,omitempty"`
	Password  string             `bson:"password" json:"-"` // bcrypt hash
	Role      Role               `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Principal is the authenticated caller of a workflow operation.
type Principal struct {
	UserID primitive.ObjectID
	Email  string
	Role   Role
}
