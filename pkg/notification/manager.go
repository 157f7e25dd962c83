package notification

import (
	"fmt"
)

// DeliveryChannel represents a delivery mechanism (email, sms, ...)
type DeliveryChannel string

const (
	EmailChannel DeliveryChannel = "email"
)

// Manager routes notices to the registered notifier for each channel
type Manager struct {
	notifiers map[DeliveryChannel]Notifier
	templates map[NoticeType]map[DeliveryChannel]NoticeTemplate
}

// NewManager creates a Manager with the built-in second-factor notices
// registered for the email channel.
func NewManager() *Manager {
	m := &Manager{
		notifiers: make(map[DeliveryChannel]Notifier),
		templates: make(map[NoticeType]map[DeliveryChannel]NoticeTemplate),
	}

	m.RegisterTemplate(TotpEnabledNotice, EmailChannel, NoticeTemplate{
		Subject: "Two-factor authentication enabled",
		Text:    "Two-factor authentication was enabled on your account. If this was not you, contact an administrator immediately.",
	})
	m.RegisterTemplate(TotpDisabledNotice, EmailChannel, NoticeTemplate{
		Subject: "Two-factor authentication disabled",
		Text:    "Two-factor authentication was disabled on your account. If this was not you, contact an administrator immediately.",
	})
	m.RegisterTemplate(BackupCodesRegeneratedNotice, EmailChannel, NoticeTemplate{
		Subject: "Backup codes regenerated",
		Text:    "Your two-factor backup codes were regenerated. Previously issued codes no longer work.",
	})

	return m
}

// RegisterNotifier registers a notifier for a delivery channel
func (m *Manager) RegisterNotifier(channel DeliveryChannel, notifier Notifier) {
	m.notifiers[channel] = notifier
}

// RegisterTemplate adds or replaces the template for a notice on a channel
func (m *Manager) RegisterTemplate(noticeType NoticeType, channel DeliveryChannel, template NoticeTemplate) {
	if _, exists := m.templates[noticeType]; !exists {
		m.templates[noticeType] = make(map[DeliveryChannel]NoticeTemplate)
	}
	m.templates[noticeType][channel] = template
}

// Send delivers a notice through every channel that has both a template and
// a registered notifier. Recipients without an address are skipped silently,
// and a manager with no notifiers registered drops notices without error.
func (m *Manager) Send(noticeType NoticeType, notification NotificationData) error {
	channels, exists := m.templates[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	if notification.To == "" {
		return nil
	}

	for channel, template := range channels {
		notifier, ok := m.notifiers[channel]
		if !ok {
			continue
		}
		if err := notifier.Send(noticeType, notification, template); err != nil {
			return fmt.Errorf("failed to send %s notice via %s: %w", noticeType, channel, err)
		}
	}
	return nil
}
