package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/assignwork/assignwork/internal/core/events"
)

type Repository interface {
	GetRole(ctx context.Context, roleID int64) (*Role, error)
	GetPermission(ctx context.Context, permissionID int64) (*Permission, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	CreateRole(ctx context.Context, role *Role) error
	DeleteRole(ctx context.Context, roleID int64) error
	CreatePermission(ctx context.Context, permission *Permission) error

	GetRolesForUser(ctx context.Context, userID int64) ([]Role, error)
	GetPermissionsForRole(ctx context.Context, roleID int64) ([]Permission, error)
	GetPermissionsForUser(ctx context.Context, userID int64) ([]Permission, error)

	AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
	GrantPermission(ctx context.Context, roleID, permissionID int64) error
	RevokePermission(ctx context.Context, roleID, permissionID int64) error

	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Service maintains the role/permission graph and decides whether a user
// may perform an action on a resource. No caching: every check re-reads
// the store, so a revoke takes effect on the next request.
type Service struct {
	repo   Repository
	bus    *events.EventBus
	logger *slog.Logger
}

func NewService(repo Repository, bus *events.EventBus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger,
	}
}

// CheckPermission reports whether any role assigned to userID grants
// exactly (resource, action). String comparison is case-sensitive; there
// are no wildcards. Store errors fail closed.
func (s *Service) CheckPermission(ctx context.Context, userID int64, resource, action string) PermissionCheck {
	roles, err := s.repo.GetRolesForUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "permission check failed loading roles",
			"user_id", userID, "resource", resource, "action", action, "error", err)
		return PermissionCheck{Allowed: false, Reason: ReasonInternalError}
	}

	for _, role := range roles {
		perms, err := s.repo.GetPermissionsForRole(ctx, role.ID)
		if err != nil {
			s.logger.ErrorContext(ctx, "permission check failed loading role permissions",
				"user_id", userID, "role_id", role.ID, "error", err)
			return PermissionCheck{Allowed: false, Reason: ReasonInternalError}
		}

		for _, p := range perms {
			if p.Resource == resource && p.Action == action {
				return PermissionCheck{Allowed: true}
			}
		}
	}

	return PermissionCheck{Allowed: false, Reason: ReasonNoMatchingGrant}
}

func (s *Service) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	roles, err := s.repo.GetRolesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return roles, nil
}

// GetUserPermissions returns the union of permissions over all roles
// assigned to the user, deduplicated by resource:action.
func (s *Service) GetUserPermissions(ctx context.Context, userID int64) ([]Permission, error) {
	perms, err := s.repo.GetPermissionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}

	seen := make(map[string]struct{}, len(perms))
	deduped := make([]Permission, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		deduped = append(deduped, p)
	}

	return deduped, nil
}

func (s *Service) GetRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	perms, err := s.repo.GetPermissionsForRole(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	return perms, nil
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

func (s *Service) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	role := &Role{Name: name, Description: description}
	if err := s.repo.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	s.audit(ctx, events.EventRoleCreated, map[string]interface{}{
		"role_id": role.ID,
		"name":    role.Name,
	})
	return role, nil
}

// DeleteRole removes the role; assignments and grants cascade away, which
// immediately strips every permission held solely through this role.
func (s *Service) DeleteRole(ctx context.Context, roleID int64) error {
	if err := s.repo.DeleteRole(ctx, roleID); err != nil {
		return err
	}

	s.audit(ctx, events.EventRoleDeleted, map[string]interface{}{
		"role_id": roleID,
	})
	return nil
}

func (s *Service) CreatePermission(ctx context.Context, resource, action, description string) (*Permission, error) {
	permission := &Permission{Resource: resource, Action: action, Description: description}
	if err := s.repo.CreatePermission(ctx, permission); err != nil {
		return nil, err
	}

	s.audit(ctx, events.EventPermissionCreated, map[string]interface{}{
		"permission_id": permission.ID,
		"resource":      permission.Resource,
		"action":        permission.Action,
	})
	return permission, nil
}

// AssignRole gives the user the role. Idempotent: assigning an already
// held role succeeds without a duplicate row. Fails when the user or role
// does not exist.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, assignedBy *int64) error {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}

	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}

	if err := s.repo.AssignRole(ctx, userID, roleID, assignedBy); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.audit(ctx, events.EventRoleAssigned, map[string]interface{}{
		"user_id":     userID,
		"role_id":     roleID,
		"assigned_by": assignedBy,
	})
	return nil
}

// RemoveRole deletes the assignment. Removing an assignment that does not
// exist is an error.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64) error {
	if err := s.repo.RemoveRole(ctx, userID, roleID); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("failed to remove role: %w", err)
	}

	s.audit(ctx, events.EventRoleRemoved, map[string]interface{}{
		"user_id": userID,
		"role_id": roleID,
	})
	return nil
}

// GrantPermissionToRole is idempotent: granting an existing grant succeeds
// without a duplicate row.
func (s *Service) GrantPermissionToRole(ctx context.Context, roleID, permissionID int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}

	if err := s.repo.GrantPermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	s.audit(ctx, events.EventPermissionGranted, map[string]interface{}{
		"role_id":       roleID,
		"permission_id": permissionID,
	})
	return nil
}

// RevokePermissionFromRole tolerates revoking an absent grant.
func (s *Service) RevokePermissionFromRole(ctx context.Context, roleID, permissionID int64) error {
	if err := s.repo.RevokePermission(ctx, roleID, permissionID); err != nil {
		return fmt.Errorf("failed to revoke permission: %w", err)
	}

	s.audit(ctx, events.EventPermissionRevoked, map[string]interface{}{
		"role_id":       roleID,
		"permission_id": permissionID,
	})
	return nil
}

func (s *Service) audit(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	if err := s.bus.PublishSync(ctx, events.NewAuditEvent(eventType, data)); err != nil {
		s.logger.WarnContext(ctx, "audit publish failed", "event_type", eventType, "error", err)
	}
}
