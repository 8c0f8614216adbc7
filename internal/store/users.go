package store

import (
	"context"
	"fmt"
	"strings"

	"mailwatch/internal/domain"
)

// CreateUser inserts a new BotUser, active by default.
func (s *Store) CreateUser(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO bot_user (telegram_id, is_active) VALUES (?, 1)`, telegramID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UserExists reports whether telegramID has a BotUser row.
func (s *Store) UserExists(ctx context.Context, telegramID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM bot_user WHERE telegram_id = ?`, telegramID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return n > 0, nil
}

// ActiveUsers returns every BotUser with is_active = true, used by the
// supervisor at process startup.
func (s *Store) ActiveUsers(ctx context.Context) ([]domain.BotUser, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT telegram_id, is_active FROM bot_user WHERE is_active = 1`)
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()
	var out []domain.BotUser
	for rows.Next() {
		var u domain.BotUser
		var active int
		if err := rows.Scan(&u.TelegramID, &active); err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		u.IsActive = active != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

// isUniqueViolation recognizes modernc.org/sqlite's constraint error text;
// the driver does not expose a typed sqlite3.Error like mattn/go-sqlite3.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}
