package rbac

import (
	"errors"
	"time"
)

// Role is a named permission group. Flat model: no hierarchy, no
// inheritance, no deny rules.
type Role struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Permission is one allowed action on one resource class, unique on the
// (resource, action) pair.
type Permission struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Resource    string    `gorm:"size:64;not null;index:idx_resource_action,unique" json:"resource"`
	Action      string    `gorm:"size:64;not null;index:idx_resource_action,unique" json:"action"`
	Description string    `gorm:"size:255" json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Key identifies the permission for deduplication.
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// UserRole records "user holds role". Cascade-deletes with either parent.
type UserRole struct {
	UserID     int64     `gorm:"primaryKey" json:"user_id"`
	RoleID     int64     `gorm:"primaryKey" json:"role_id"`
	AssignedAt time.Time `gorm:"autoCreateTime" json:"assigned_at"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
}

// RolePermission records "role grants permission".
type RolePermission struct {
	RoleID       int64     `gorm:"primaryKey" json:"role_id"`
	PermissionID int64     `gorm:"primaryKey" json:"permission_id"`
	GrantedAt    time.Time `gorm:"autoCreateTime" json:"granted_at"`
}

// PermissionCheck is the outcome of a permission decision. Denial is a
// normal result, not an error.
type PermissionCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

const (
	ReasonNoMatchingGrant = "no role assigned to the user grants this permission"
	ReasonInternalError   = "permission check failed due to an internal error"
)

var (
	ErrRoleNotFound        = errors.New("role not found")
	ErrPermissionNotFound  = errors.New("permission not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrDuplicateRole       = errors.New("role name already exists")
	ErrDuplicatePermission = errors.New("permission already exists for resource and action")
	ErrAssignmentNotFound  = errors.New("role assignment not found")
)
