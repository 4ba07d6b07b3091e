package models

import "time"

// User roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Phone        string
	Role         string // "customer" or "admin"
	Status       string // "active", "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user carries the admin role.
// Role is a property of the stored record, never derived from the email.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
