package types

import (
	"strings"
	"time"
)

// Roles a user can hold. The role is fixed at registration time; no
// transition path is exposed by the API.
const (
	RoleStudent = "student"
	RoleTutor   = "tutor"
)

// IsValidRole reports whether role is one of the registerable roles.
func IsValidRole(role string) bool {
	return role == RoleStudent || role == RoleTutor
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name, derived from the email local
	// part at registration.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// FirstName is the user's given name.
	FirstName string `json:"first_name" db:"first_name"`

	// LastName is the user's family name.
	LastName string `json:"last_name" db:"last_name"`

	// Role is "student" or "tutor" and determines which operations
	// the user may perform.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// AvatarKey is the object-storage key of the user's avatar, empty
	// when none has been uploaded. Never exposed in API responses.
	AvatarKey string `json:"-" db:"avatar_key"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns "FirstName LastName", falling back to the
// username when both name fields are blank.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Username
	}
	return name
}
