package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/assignwork/assignwork/internal"
	"github.com/assignwork/assignwork/internal/core/events"
	"github.com/assignwork/assignwork/internal/oauth"
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	Delete(ctx context.Context, id int64) error
}

// Service reconciles externally authenticated identities with local user
// records. Login never provisions; only the administrative path does.
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

func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// FindLocalUser looks the user up by email first, falling back to username.
// The email match always wins when both would match different rows.
func (s *Service) FindLocalUser(ctx context.Context, email, username string) (*User, error) {
	if email != "" {
		u, err := s.repo.GetByEmail(ctx, email)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup by email: %w", err)
		}
	}

	if username != "" {
		u, err := s.repo.GetByUsername(ctx, username)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup by username: %w", err)
		}
	}

	return nil, ErrNotFound
}

// CreateLocalUser persists exactly {email, username}. Any other attribute
// carried by the source identity is discarded by construction.
func (s *Service) CreateLocalUser(ctx context.Context, email, username string) (*User, error) {
	u := &User{Email: email, Username: username}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create local user: %w", err)
	}
	return u, nil
}

// SyncUserFromSSO maps an authenticated identity onto a local record. A
// missing record is a structured user_not_found failure, never an implicit
// provisioning: access must be granted by an administrator first.
func (s *Service) SyncUserFromSSO(ctx context.Context, identity oauth.Identity) *SyncResult {
	u, err := s.FindLocalUser(ctx, identity.Email, identity.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "authenticated identity has no local user record",
				"email", identity.Email, "username", identity.Username)
			return &SyncResult{
				Success:          false,
				UserExists:       false,
				Error:            internal.ErrCodeUserNotFound,
				ErrorDescription: "no local user record has been provisioned for this identity",
			}
		}

		s.logger.ErrorContext(ctx, "user sync lookup failed", "error", err)
		return &SyncResult{
			Success:          false,
			UserExists:       false,
			Error:            internal.ErrCodeSyncError,
			ErrorDescription: "failed to look up local user record",
		}
	}

	return &SyncResult{Success: true, User: u, UserExists: true}
}

// ProvisionUserFromSSO is the administrative provisioning path: look up,
// else create. Idempotent for a fixed identity.
func (s *Service) ProvisionUserFromSSO(ctx context.Context, identity oauth.Identity) (*User, error) {
	u, err := s.FindLocalUser(ctx, identity.Email, identity.Username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u, err = s.CreateLocalUser(ctx, identity.Email, identity.Username)
	if err != nil {
		return nil, err
	}

	if s.bus != nil {
		_ = s.bus.PublishSync(ctx, events.NewAuditEvent(events.EventUserProvisioned, map[string]interface{}{
			"user_id":  u.ID,
			"email":    u.Email,
			"username": u.Username,
		}))
	}

	return u, nil
}

// DeleteUser removes a local user record. Role assignments cascade away
// with the row.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
