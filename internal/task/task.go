package task

import (
	"errors"
	"time"
)

// Task is a unit of assignable work. It exists to give the authorization
// layer a real resource: reads require tasks:read, mutations tasks:write,
// deletion tasks:delete.
type Task struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `gorm:"not null;default:open" json:"status"`
	AssigneeID  *int64    `gorm:"index" json:"assignee_id,omitempty"`
	CreatedBy   int64     `gorm:"not null;index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
)

// ValidStatus reports whether s is one of the known task states.
func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone:
		return true
	}
	return false
}

var ErrNotFound = errors.New("task not found")
