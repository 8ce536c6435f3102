package user

import (
	"errors"
	"time"

	"github.com/assignwork/assignwork/internal"
)

// User is the local, minimal user record. Only the identity linkage fields
// from the external provider are stored; provider-specific attributes
// (role, department, level) are excluded by construction.
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNotFound  = errors.New("user not found")
	ErrDuplicate = errors.New("user already exists")
)

// SyncResult is the structured outcome of reconciling an externally
// authenticated identity against the local user table.
type SyncResult struct {
	Success          bool               `json:"success"`
	User             *User              `json:"user,omitempty"`
	UserExists       bool               `json:"user_exists"`
	Error            internal.ErrorCode `json:"error,omitempty"`
	ErrorDescription string             `json:"error_description,omitempty"`
}
