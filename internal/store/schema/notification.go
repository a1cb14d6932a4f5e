package schema

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationStatus is the delivery status of an incubation notification
type NotificationStatus string

const (
	// NotificationStatusPending is a notification accepted by the relay but not yet handed to SMTP
	NotificationStatusPending NotificationStatus = "pending"
	// NotificationStatusSent is a notification the mail server accepted
	NotificationStatusSent NotificationStatus = "sent"
	// NotificationStatusFailed is a notification the mail server rejected
	NotificationStatusFailed NotificationStatus = "failed"
)

// Notification represents the notifications table - audit log of relayed incubation emails
type Notification struct {
	// ID is an auto-incrementing sequence number
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// EventID is a unique identifier for this notification (ULID for time-sortable uniqueness)
	EventID string `gorm:"column:event_id;not null;uniqueIndex;type:varchar(26)"`
	// Recipient is the address the email was relayed to
	Recipient string `gorm:"column:recipient;not null;type:varchar(320)"`
	// Subject is the email subject, it carries the incubated type and retry number
	Subject string `gorm:"column:subject;not null;type:text"`
	// Payload is the request body as received by the relay
	Payload datatypes.JSON `gorm:"column:payload;not null;type:jsonb"`
	// Status indicates the current status: pending, sent, failed
	Status NotificationStatus `gorm:"column:status;not null;default:pending"`
	// ErrorMessage contains the SMTP error when sending failed
	ErrorMessage string `gorm:"column:error_message;type:text"`
	// SentAt is the time the mail server accepted the message
	SentAt *time.Time `gorm:"column:sent_at;type:timestamptz"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}
