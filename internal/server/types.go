package server

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Share permissions.
const (
	PermissionView = "view"
	PermissionEdit = "edit"
)

// User is a row in the users table. PasswordHash and reset fields never leave
// the server; the JSON view below is what API responses expose.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Role     string    `json:"role"`

	PasswordHash      string     `json:"-"`
	ResetTokenHash    *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is a row in the files table. Shares is populated on demand by the
// handlers that need the share list.
type File struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner_id"`
	OrigName     string    `json:"orig_name"`
	URL          string    `json:"url"`
	ObjectID     string    `json:"object_id"`
	ResourceKind string    `json:"resource_kind"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Shares []ShareEntry `json:"shared_with,omitempty"`
}

// ShareEntry grants a non-owner explicit access to a file. At most one entry
// exists per (file, user); the primary key in file_shares enforces it.
type ShareEntry struct {
	UserID     uuid.UUID `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	Email      string    `json:"email,omitempty"`
	Permission string    `json:"permission"`
}

// identity is the authenticated caller, established by the auth middleware
// from the bearer token and a fresh user lookup.
type identity struct {
	UserID   uuid.UUID
	Email    string
	Username string
	Role     string
}

func validPermission(p string) bool {
	return p == PermissionView || p == PermissionEdit
}
