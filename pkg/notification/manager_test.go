package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Send(t *testing.T) {
	manager := NewManager()
	mock := &MockNotifier{}
	manager.RegisterNotifier(EmailChannel, mock)

	err := manager.Send(TotpDisabledNotice, NotificationData{To: "user@example.com"})
	require.NoError(t, err)
	require.Len(t, mock.SentNotifications, 1)
	assert.Equal(t, "user@example.com", mock.SentNotifications[0].To)
	assert.Equal(t, TotpDisabledNotice, mock.SentTypes[0])
}

func TestManager_SendUnknownNotice(t *testing.T) {
	manager := NewManager()
	manager.RegisterNotifier(EmailChannel, &MockNotifier{})

	err := manager.Send(NoticeType("unknown"), NotificationData{To: "user@example.com"})
	assert.Error(t, err)
}

func TestManager_SendNoRecipient(t *testing.T) {
	manager := NewManager()
	mock := &MockNotifier{}
	manager.RegisterNotifier(EmailChannel, mock)

	// A user without an email address is skipped, not an error
	err := manager.Send(TotpDisabledNotice, NotificationData{})
	require.NoError(t, err)
	assert.Empty(t, mock.SentNotifications)
}

func TestManager_SendNoNotifier(t *testing.T) {
	manager := NewManager()

	// Deployments without a configured channel drop notices silently
	err := manager.Send(TotpDisabledNotice, NotificationData{To: "user@example.com"})
	assert.NoError(t, err)
}
