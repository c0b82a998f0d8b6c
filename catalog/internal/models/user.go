package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Role is the closed set of privilege levels.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleCreator Role = "CREATOR"
	RoleViewer  Role = "VIEWER"
)

// Capability is a "resource:action" permission string.
type Capability string

const (
	CapVideosPublish Capability = "videos:publish"
	CapVideosUpdate  Capability = "videos:update"
	CapVideosDelete  Capability = "videos:delete"
	CapVideosRead    Capability = "videos:read"
	CapVideosPlay    Capability = "videos:play"
	CapAuditRead     Capability = "audit:read"
	CapUsersRead     Capability = "users:read"
	CapUsersUpdate   Capability = "users:update"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdmin: {
		CapVideosPublish, CapVideosUpdate, CapVideosDelete, CapVideosRead, CapVideosPlay,
		CapAuditRead, CapUsersRead, CapUsersUpdate,
	},
	RoleCreator: {
		CapVideosPublish, CapVideosUpdate, CapVideosDelete, CapVideosRead, CapVideosPlay,
		CapAuditRead,
	},
	RoleViewer: {
		CapVideosRead, CapVideosPlay,
	},
}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := roleCapabilities[r]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

// Capabilities returns a copy of the capabilities granted to r. Unknown
// roles have none.
func (r Role) Capabilities() []Capability {
	return slices.Clone(roleCapabilities[r])
}

// Can reports whether r grants c.
func (r Role) Can(c Capability) bool {
	return slices.Contains(roleCapabilities[r], c)
}

// User is an account in the identity store.
type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Can reports whether the user's role grants c. A nil user can do nothing.
func (u *User) Can(c Capability) bool {
	if u == nil {
		return false
	}
	return u.Role.Can(c)
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID           string       `json:"id"`
	DisplayName  string       `json:"display_name"`
	Email        string       `json:"email"`
	Role         Role         `json:"role"`
	Capabilities []Capability `json:"capabilities"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:           u.ID,
		DisplayName:  u.DisplayName,
		Email:        u.Email,
		Role:         u.Role,
		Capabilities: u.Role.Capabilities(),
		CreatedAt:    u.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an address so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
