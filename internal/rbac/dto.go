package rbac

// CreateRoleRequest creates a named role.
type CreateRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// CreatePermissionRequest creates a (resource, action) permission.
type CreatePermissionRequest struct {
	Resource    string `json:"resource" validate:"required,min=2,max=64"`
	Action      string `json:"action" validate:"required,min=2,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// AssignRoleRequest attaches a role to a user.
type AssignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required"`
}

// GrantPermissionRequest attaches a permission to a role.
type GrantPermissionRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required"`
}

type RoleListResponse struct {
	Roles []Role `json:"roles"`
}

type PermissionListResponse struct {
	Permissions []Permission `json:"permissions"`
}

// UserAccessResponse is an administrator's view of one user's grants.
type UserAccessResponse struct {
	UserID      int64        `json:"user_id"`
	Roles       []Role       `json:"roles"`
	Permissions []Permission `json:"permissions,omitempty"`
}
