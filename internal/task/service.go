package task

import (
	"context"
	"fmt"
	"log/slog"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Task, error)
	List(ctx context.Context) ([]Task, error)
	Create(ctx context.Context, t *Task) error
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Task, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Task, error) {
	return s.repo.List(ctx)
}

func (s *Service) Create(ctx context.Context, title, description string, assigneeID *int64, createdBy int64) (*Task, error) {
	t := &Task{
		Title:       title,
		Description: description,
		Status:      StatusOpen,
		AssigneeID:  assigneeID,
		CreatedBy:   createdBy,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.logger.InfoContext(ctx, "task created", "task_id", t.ID, "created_by", createdBy)
	return t, nil
}

// Update applies the non-nil fields. A nil field leaves the stored value
// alone; assignee can be cleared by passing an explicit zero.
func (s *Service) Update(ctx context.Context, id int64, title, description, status *string, assigneeID *int64) (*Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if title != nil {
		t.Title = *title
	}
	if description != nil {
		t.Description = *description
	}
	if status != nil {
		if !ValidStatus(*status) {
			return nil, fmt.Errorf("unknown task status %q", *status)
		}
		t.Status = *status
	}
	if assigneeID != nil {
		if *assigneeID == 0 {
			t.AssigneeID = nil
		} else {
			t.AssigneeID = assigneeID
		}
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	return t, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "task deleted", "task_id", id)
	return nil
}
