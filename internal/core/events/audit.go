package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Authorization audit event types.
const (
	EventRoleCreated       = "rbac.role_created"
	EventRoleDeleted       = "rbac.role_deleted"
	EventPermissionCreated = "rbac.permission_created"
	EventRoleAssigned      = "rbac.role_assigned"
	EventRoleRemoved       = "rbac.role_removed"
	EventPermissionGranted = "rbac.permission_granted"
	EventPermissionRevoked = "rbac.permission_revoked"
	EventUserProvisioned   = "user.provisioned"
)

// NewAuditEvent builds an audit event with a fresh id and timestamp.
func NewAuditEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SubscribeAuditLogger attaches a logging subscriber for every audit event
// type so role and permission changes always leave a trace.
func SubscribeAuditLogger(bus *EventBus, logger *slog.Logger) {
	types := []string{
		EventRoleCreated,
		EventRoleDeleted,
		EventPermissionCreated,
		EventRoleAssigned,
		EventRoleRemoved,
		EventPermissionGranted,
		EventPermissionRevoked,
		EventUserProvisioned,
	}

	for _, eventType := range types {
		bus.Subscribe(eventType, func(ctx context.Context, event Event) error {
			logger.InfoContext(ctx, "audit",
				"event_type", event.EventType(),
				"event_id", event.EventID(),
				"occurred_at", event.OccurredAt(),
				"data", event.Payload())
			return nil
		})
	}
}
