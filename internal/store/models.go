package store

import (
	"database/sql"

	"github.com/Prost0Name/WeatherBot/internal/domain"
)

// userRow mirrors the users table; nullable text columns are scanned through
// sql.NullString and flattened into the domain model.
type userRow struct {
	TelegramID           int64          `db:"telegram_id"`
	Username             sql.NullString `db:"username"`
	FirstName            sql.NullString `db:"first_name"`
	LastName             sql.NullString `db:"last_name"`
	City                 sql.NullString `db:"city"`
	NotificationTime     sql.NullString `db:"notification_time"`
	NotificationsEnabled bool           `db:"notifications_enabled"`
}

func (r userRow) toDomain() domain.User {
	return domain.User{
		TelegramID:           r.TelegramID,
		Username:             r.Username.String,
		FirstName:            r.FirstName.String,
		LastName:             r.LastName.String,
		City:                 r.City.String,
		NotificationTime:     r.NotificationTime.String,
		NotificationsEnabled: r.NotificationsEnabled,
	}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
