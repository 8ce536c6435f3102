package rbac

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/assignwork/assignwork/internal/rbac"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetRole(ctx context.Context, roleID int64) (*rbac.Role, error) {
	var role rbac.Role
	if err := r.db.WithContext(ctx).First(&role, "id = ?", roleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rbac.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *Repository) GetPermission(ctx context.Context, permissionID int64) (*rbac.Permission, error) {
	var permission rbac.Permission
	if err := r.db.WithContext(ctx).First(&permission, "id = ?", permissionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, rbac.ErrPermissionNotFound
		}
		return nil, err
	}
	return &permission, nil
}

func (r *Repository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	var roles []rbac.Role
	if err := r.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *Repository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	var permissions []rbac.Permission
	if err := r.db.WithContext(ctx).Order("resource, action").Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *Repository) CreateRole(ctx context.Context, role *rbac.Role) error {
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rbac.ErrDuplicateRole
		}
		return err
	}
	return nil
}

func (r *Repository) DeleteRole(ctx context.Context, roleID int64) error {
	res := r.db.WithContext(ctx).Delete(&rbac.Role{}, "id = ?", roleID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rbac.ErrRoleNotFound
	}
	return nil
}

func (r *Repository) CreatePermission(ctx context.Context, permission *rbac.Permission) error {
	if err := r.db.WithContext(ctx).Create(permission).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return rbac.ErrDuplicatePermission
		}
		return err
	}
	return nil
}

func (r *Repository) GetRolesForUser(ctx context.Context, userID int64) ([]rbac.Role, error) {
	var roles []rbac.Role
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Find(&roles).Error
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *Repository) GetPermissionsForRole(ctx context.Context, roleID int64) ([]rbac.Permission, error) {
	var permissions []rbac.Permission
	err := r.db.WithContext(ctx).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.resource, permissions.action").
		Find(&permissions).Error
	if err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *Repository) GetPermissionsForUser(ctx context.Context, userID int64) ([]rbac.Permission, error) {
	var permissions []rbac.Permission
	err := r.db.WithContext(ctx).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Find(&permissions).Error
	if err != nil {
		return nil, err
	}
	return permissions, nil
}

// AssignRole inserts the join row; an existing assignment is left alone so
// the operation stays a single idempotent statement.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	assignment := rbac.UserRole{UserID: userID, RoleID: roleID, AssignedBy: assignedBy}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&assignment).Error
}

func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&rbac.UserRole{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return rbac.ErrAssignmentNotFound
	}
	return nil
}

func (r *Repository) GrantPermission(ctx context.Context, roleID, permissionID int64) error {
	grant := rbac.RolePermission{RoleID: roleID, PermissionID: permissionID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&grant).Error
}

// RevokePermission deletes the grant if present. Revoking an absent grant
// is not an error.
func (r *Repository) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	return r.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&rbac.RolePermission{}).Error
}

func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Table("users").Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
