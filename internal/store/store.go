package store

import (
	"context"

	"github.com/cayc/incubator/internal/store/schema"
)

//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore

// Store defines the interface for database operations
type Store interface {
	// CreateNotification records a notification accepted by the relay
	CreateNotification(ctx context.Context, notification *schema.Notification) error
	// MarkNotificationSent marks a notification as accepted by the mail server
	MarkNotificationSent(ctx context.Context, eventID string) error
	// MarkNotificationFailed marks a notification as rejected, keeping the error for inspection
	MarkNotificationFailed(ctx context.Context, eventID string, errorMessage string) error
	// GetNotificationByEventID retrieves a notification by its event ID
	GetNotificationByEventID(ctx context.Context, eventID string) (*schema.Notification, error)
}
