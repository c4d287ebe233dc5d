package domain

// User represents a bot user and their daily notification settings.
type User struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string

	// City is the last confirmed city for daily notifications. Empty until
	// the user completes the subscription flow at least once.
	City string

	// NotificationTime is "HH:MM" (24h). Empty means notifications were
	// never configured or were cleared.
	NotificationTime string

	// NotificationsEnabled must be checked together with NotificationTime:
	// a time may remain stored while notifications are disabled.
	NotificationsEnabled bool
}

// Subscribed reports whether the user should receive a daily digest.
func (u *User) Subscribed() bool {
	return u.NotificationsEnabled && u.NotificationTime != "" && u.City != ""
}
