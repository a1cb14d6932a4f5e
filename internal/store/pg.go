package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/store/schema"
)

// maxErrorMessageLength bounds the stored SMTP error
const maxErrorMessageLength = 1024

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// If any of the pool settings are 0 or empty, reasonable defaults are used:
//   - MaxOpenConns: 20 (if 0)
//   - MaxIdleConns: 5 (if 0)
//   - ConnMaxLifetime: 5 minutes (if 0)
//   - ConnMaxIdleTime: 10 minutes (if 0)
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns <= 0 {
		maxOpenConns = 20
	}
	if maxIdleConns <= 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime <= 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// CreateNotification records a notification accepted by the relay
func (s *pgStore) CreateNotification(ctx context.Context, notification *schema.Notification) error {
	if notification.Status == "" {
		notification.Status = schema.NotificationStatusPending
	}
	err := s.db.WithContext(ctx).Create(notification).Error
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// MarkNotificationSent marks a notification as accepted by the mail server
func (s *pgStore) MarkNotificationSent(ctx context.Context, eventID string) error {
	now := time.Now()
	return s.updateNotification(ctx, eventID, map[string]interface{}{
		"status":     schema.NotificationStatusSent,
		"sent_at":    now,
		"updated_at": now,
	})
}

// MarkNotificationFailed marks a notification as rejected by the mail server
func (s *pgStore) MarkNotificationFailed(ctx context.Context, eventID string, errorMessage string) error {
	if len(errorMessage) > maxErrorMessageLength {
		errorMessage = errorMessage[:maxErrorMessageLength]
	}
	return s.updateNotification(ctx, eventID, map[string]interface{}{
		"status":        schema.NotificationStatusFailed,
		"error_message": errorMessage,
		"updated_at":    time.Now(),
	})
}

func (s *pgStore) updateNotification(ctx context.Context, eventID string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&schema.Notification{}).
		Where("event_id = ?", eventID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update notification status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, eventID)
	}
	return nil
}

// GetNotificationByEventID retrieves a notification by its event ID
func (s *pgStore) GetNotificationByEventID(ctx context.Context, eventID string) (*schema.Notification, error) {
	var notification schema.Notification
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotificationNotFound, eventID)
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &notification, nil
}
