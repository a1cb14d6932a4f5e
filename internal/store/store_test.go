package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/cayc/incubator/internal/domain"
	"github.com/cayc/incubator/internal/store/schema"
)

// buildTestNotification creates a pending notification with a fresh event ID
func buildTestNotification(t *testing.T, subject string) *schema.Notification {
	payload, err := json.Marshal(map[string]string{
		"to":      domain.NotificationRecipient,
		"subject": subject,
		"body":    "Account: 0xabc\nToken IDs: 1, 2, 3",
	})
	require.NoError(t, err)

	return &schema.Notification{
		EventID:   ulid.Make().String(),
		Recipient: domain.NotificationRecipient,
		Subject:   subject,
		Payload:   datatypes.JSON(payload),
	}
}

// RunStoreTests runs the store test cases against an implementation
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"CreateNotification", testCreateNotification},
		{"MarkNotificationSent", testMarkNotificationSent},
		{"MarkNotificationFailed", testMarkNotificationFailed},
		{"NotificationNotFound", testNotificationNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}

func testCreateNotification(t *testing.T, store Store) {
	ctx := context.Background()
	n := buildTestNotification(t, "An Incubated GORILLA Ape has been made")

	require.NoError(t, store.CreateNotification(ctx, n))
	assert.NotZero(t, n.ID)

	got, err := store.GetNotificationByEventID(ctx, n.EventID)
	require.NoError(t, err)
	assert.Equal(t, schema.NotificationStatusPending, got.Status)
	assert.Equal(t, n.Subject, got.Subject)
	assert.Equal(t, domain.NotificationRecipient, got.Recipient)
	assert.Nil(t, got.SentAt)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, n.Subject, payload["subject"])

	// Event IDs are unique
	dup := buildTestNotification(t, "duplicate")
	dup.EventID = n.EventID
	assert.Error(t, store.CreateNotification(ctx, dup))
}

func testMarkNotificationSent(t *testing.T, store Store) {
	ctx := context.Background()
	n := buildTestNotification(t, "An Incubated RARITY Ape has been made - Retry 2")
	require.NoError(t, store.CreateNotification(ctx, n))

	require.NoError(t, store.MarkNotificationSent(ctx, n.EventID))

	got, err := store.GetNotificationByEventID(ctx, n.EventID)
	require.NoError(t, err)
	assert.Equal(t, schema.NotificationStatusSent, got.Status)
	require.NotNil(t, got.SentAt)
	assert.Empty(t, got.ErrorMessage)
}

func testMarkNotificationFailed(t *testing.T, store Store) {
	ctx := context.Background()
	n := buildTestNotification(t, "An Incubated SILVERBACK Ape has been made")
	require.NoError(t, store.CreateNotification(ctx, n))

	longErr := strings.Repeat("x", maxErrorMessageLength+100)
	require.NoError(t, store.MarkNotificationFailed(ctx, n.EventID, longErr))

	got, err := store.GetNotificationByEventID(ctx, n.EventID)
	require.NoError(t, err)
	assert.Equal(t, schema.NotificationStatusFailed, got.Status)
	assert.Len(t, got.ErrorMessage, maxErrorMessageLength)
	assert.Nil(t, got.SentAt)
}

func testNotificationNotFound(t *testing.T, store Store) {
	ctx := context.Background()
	missing := ulid.Make().String()

	_, err := store.GetNotificationByEventID(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	err = store.MarkNotificationSent(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)

	err = store.MarkNotificationFailed(ctx, missing, "boom")
	assert.ErrorIs(t, err, domain.ErrNotificationNotFound)
}

func TestNormalizeConnectionPoolSettings(t *testing.T) {
	open, idle, lifetime, idleTime := NormalizeConnectionPoolSettings(0, 0, 0, 0)
	assert.Equal(t, 20, open)
	assert.Equal(t, 5, idle)
	assert.Equal(t, "5m0s", lifetime.String())
	assert.Equal(t, "10m0s", idleTime.String())

	open, idle, _, _ = NormalizeConnectionPoolSettings(4, 10, 0, 0)
	assert.Equal(t, 4, open)
	assert.Equal(t, 4, idle)
}
