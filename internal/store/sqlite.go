package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/Prost0Name/WeatherBot/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sqlx.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// EnsureUser inserts a user row if it does not exist yet. Conflicts on
// telegram_id are ignored, so registering twice never overwrites the city or
// notification settings of an existing user.
func (r *SQLiteRepo) EnsureUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO NOTHING`,
		u.TelegramID, toNullString(u.Username), toNullString(u.FirstName), toNullString(u.LastName),
	)
	return err
}

// GetUser returns a user by telegram ID or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, telegramID int64) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `
		SELECT telegram_id, username, first_name, last_name,
		       city, notification_time, notifications_enabled
		FROM users
		WHERE telegram_id = ?`,
		telegramID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u := row.toDomain()
	return &u, nil
}

// SetCity stores the confirmed notification city for a user.
func (r *SQLiteRepo) SetCity(ctx context.Context, telegramID int64, city string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET city = ? WHERE telegram_id = ?`,
		city, telegramID,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// SetNotification stores the daily time and enables notifications in one
// statement so the two fields can never diverge.
func (r *SQLiteRepo) SetNotification(ctx context.Context, telegramID int64, hhmm string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET notification_time = ?, notifications_enabled = 1
		WHERE telegram_id = ?`,
		hhmm, telegramID,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// ClearNotification drops the time and the enabled flag together. The user
// row and their city are kept.
func (r *SQLiteRepo) ClearNotification(ctx context.Context, telegramID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET notification_time = NULL, notifications_enabled = 0
		WHERE telegram_id = ?`,
		telegramID,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// ListDue returns all enabled users whose notification time equals hhmm.
func (r *SQLiteRepo) ListDue(ctx context.Context, hhmm string) ([]domain.User, error) {
	var rows []userRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT telegram_id, username, first_name, last_name,
		       city, notification_time, notifications_enabled
		FROM users
		WHERE notifications_enabled = 1
		  AND notification_time = ?
		ORDER BY telegram_id`,
		hhmm,
	)
	if err != nil {
		return nil, err
	}

	res := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		res = append(res, row.toDomain())
	}
	return res, nil
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
