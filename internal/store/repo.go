package store

import (
	"context"
	"errors"

	"github.com/Prost0Name/WeatherBot/internal/domain"
)

// ErrNotFound is returned when a user row does not exist.
var ErrNotFound = errors.New("user not found")

// Repo defines storage operations for users and their notification settings.
// All operations are atomic at the single-row level; there are no
// multi-record transactions.
type Repo interface {
	// EnsureUser inserts the user if absent. Re-ensuring an existing user is
	// a no-op and never touches the stored city or notification fields.
	EnsureUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, telegramID int64) (*domain.User, error)
	SetCity(ctx context.Context, telegramID int64, city string) error
	// SetNotification stores the time and sets the enabled flag together.
	SetNotification(ctx context.Context, telegramID int64, hhmm string) error
	// ClearNotification nulls the time and drops the enabled flag together;
	// the user row itself is kept.
	ClearNotification(ctx context.Context, telegramID int64) error
	// ListDue returns enabled users whose notification time equals hhmm.
	ListDue(ctx context.Context, hhmm string) ([]domain.User, error)
	Close() error
}
