package domain

import "time"

// Role enumerates the account roles recognised by the marketplace.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID            string
	Email         string
	Name          string
	Role          Role
	PasswordHash  string
	IsActive      bool
	EmailVerified *time.Time
	CreatedAt     time.Time
	LastLoginAt   *time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
