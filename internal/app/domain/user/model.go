package user

import "time"

// Role identifies what a user is allowed to do in the platform.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleCoordinator Role = "coordinator"
	RoleResponder   Role = "responder"
	RoleDonor       Role = "donor"
	RoleAssessor    Role = "assessor"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCoordinator, RoleResponder, RoleDonor, RoleAssessor:
		return true
	}
	return false
}

// User represents an account in the platform.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	Organization string    `json:"organization,omitempty"`
	PasswordHash string    `json:"-"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
