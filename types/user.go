package types

import (
	"fmt"
	"strings"
	"time"
)

// Role is the coarse permission level of an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleUser, RoleAdmin, RoleGuest}

// ParseRole converts a raw role name into a Role.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseRole(value string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", value)
	}
	return role, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether r grants access to the administrative panel.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Title returns the role name with its first letter upper-cased.
func (r Role) Title() string {
	if r == "" {
		return ""
	}
	s := string(r)
	return strings.ToUpper(s[:1]) + s[1:]
}

func (r Role) String() string {
	return string(r)
}

// User represents an account in the system.
// It contains identity, role, and activation state.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address. It can also be used to log in.
	Email string `json:"email" db:"email"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// IsActive is false for accounts that have been disabled by an admin.
	// Inactive accounts cannot log in.
	IsActive bool `json:"is_active" db:"is_active"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
