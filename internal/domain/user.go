package domain

import "time"

// Role determines what a user may see and do across the helpdesk.
type Role string

const (
	RoleRegular  Role = "regular"
	RoleEmployee Role = "employee"
)

// ValidRole reports whether the given role is one of the known values.
func ValidRole(r Role) bool {
	return r == RoleRegular || r == RoleEmployee
}

// User is an account that files or works tickets. The role lives on the
// identity record and is written in the same insert at registration.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsEmployee reports whether the user holds the employee role.
func (u *User) IsEmployee() bool {
	return u != nil && u.Role == RoleEmployee
}
