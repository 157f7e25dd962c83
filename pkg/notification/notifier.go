package notification

// NoticeType identifies a kind of notice sent to users
type NoticeType string

const (
	// TotpEnabledNotice is sent when a user finishes enrolling a second factor
	TotpEnabledNotice NoticeType = "totp_enabled"
	// TotpDisabledNotice is sent when a user disables their second factor
	TotpDisabledNotice NoticeType = "totp_disabled"
	// BackupCodesRegeneratedNotice is sent when backup codes are replaced
	BackupCodesRegeneratedNotice NoticeType = "backup_codes_regenerated"
)

// NoticeTemplate holds the subject and bodies for a notice
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationData carries the recipient and template data for one notice
type NotificationData struct {
	To   string            // Recipient identifier (e.g., email address)
	Data map[string]string // Template data
}

// Notifier sends a rendered notice through one delivery channel
type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
