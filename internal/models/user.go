package models

import "time"

// Role controls which privileged operations a user may perform.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// User is an authenticated principal. Login and session handling live
// outside the registry; the core only ever sees a stable id and a role.
type User struct {
	ID          string     `json:"id"`
	Handle      string     `json:"handle,omitempty"`
	DisplayName string     `json:"displayName,omitempty"`
	Image       string     `json:"image,omitempty"`
	Role        Role       `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// IsModerator reports whether the user holds moderator powers (admins do).
func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

// IsAdmin reports whether the user holds admin powers.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// APIToken is the stored form of an opaque bearer token. The raw token is
// never persisted; only its SHA-256 hex digest is kept for comparison.
type APIToken struct {
	Hash      string     `json:"hash"`
	UserID    string     `json:"userId"`
	Label     string     `json:"label,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

// UserRef is the public projection of a user attached to API responses.
type UserRef struct {
	ID          string `json:"id"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Ref returns the public projection of the user.
func (u *User) Ref() UserRef {
	return UserRef{
		ID:          u.ID,
		Handle:      u.Handle,
		DisplayName: u.DisplayName,
		Image:       u.Image,
	}
}
