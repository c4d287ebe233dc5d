package domain

import "regexp"

// notificationTimeRe matches 24-hour "HH:MM" with a leading zero required:
// "08:00" is valid, "8:00" and "24:00" are not.
var notificationTimeRe = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// ValidNotificationTime reports whether s is a well-formed "HH:MM" string
// suitable for daily notification matching.
func ValidNotificationTime(s string) bool {
	return notificationTimeRe.MatchString(s)
}
