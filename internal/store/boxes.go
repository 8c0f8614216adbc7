package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"mailwatch/internal/domain"
	"mailwatch/internal/kv"
)

// CreateBox inserts a new EmailBox. The caller has already verified the
// user and service exist and probed the IMAP credentials.
func (s *Store) CreateBox(ctx context.Context, box domain.EmailBox) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO email_box (user_id, email_service_id, email_username, email_password, is_active)
		 VALUES (?, ?, ?, ?, ?)`,
		box.UserID, box.EmailServiceID, box.Username, box.PasswordCipher, boolToInt(box.IsActive),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrBoxAlreadyExists
		}
		return 0, fmt.Errorf("create box: %w", err)
	}
	return res.LastInsertId()
}

// Box returns one EmailBox by id, cached by id.
func (s *Store) Box(ctx context.Context, id int64) (domain.EmailBox, error) {
	args := map[string]string{"id": strconv.FormatInt(id, 10)}
	return memoize(ctx, s, kv.TplEmailBox, args, func(ctx context.Context) (domain.EmailBox, error) {
		var b domain.EmailBox
		var active int
		err := s.db.QueryRowContext(ctx,
			`SELECT id, user_id, email_service_id, email_username, email_password, is_active FROM email_box WHERE id = ?`, id,
		).Scan(&b.ID, &b.UserID, &b.EmailServiceID, &b.Username, &b.PasswordCipher, &active)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EmailBox{}, domain.ErrBoxNotFound
		}
		if err != nil {
			return domain.EmailBox{}, fmt.Errorf("get box: %w", err)
		}
		b.IsActive = active != 0
		return b, nil
	})
}

// BoxesForUser returns every EmailBox owned by telegramID, or
// ErrBoxesNotFound if the user has none. Cached per user.
func (s *Store) BoxesForUser(ctx context.Context, telegramID int64) ([]domain.EmailBox, error) {
	args := map[string]string{"id": strconv.FormatInt(telegramID, 10)}
	return memoize(ctx, s, kv.TplUserEmailBoxes, args, func(ctx context.Context) ([]domain.EmailBox, error) {
		out, err := s.BoxesForUserAny(ctx, telegramID)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, domain.ErrBoxesNotFound
		}
		return out, nil
	})
}

// AllActiveBoxes returns every EmailBox with is_active = true across all
// users, ordered by user then id; it does not check whether the owning user
// is active.
func (s *Store) AllActiveBoxes(ctx context.Context) ([]domain.EmailBox, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, email_service_id, email_username, email_password, is_active
		 FROM email_box WHERE is_active = 1 ORDER BY user_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list active boxes: %w", err)
	}
	defer rows.Close()
	var out []domain.EmailBox
	for rows.Next() {
		var b domain.EmailBox
		var active int
		if err := rows.Scan(&b.ID, &b.UserID, &b.EmailServiceID, &b.Username, &b.PasswordCipher, &active); err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		b.IsActive = active != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

// BoxesForUserAny returns every EmailBox for telegramID including paused
// ones, used by the supervisor startup sweep which must launch paused
// workers too so they can observe their own status.
func (s *Store) BoxesForUserAny(ctx context.Context, telegramID int64) ([]domain.EmailBox, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, email_service_id, email_username, email_password, is_active
		 FROM email_box WHERE user_id = ? ORDER BY id`, telegramID)
	if err != nil {
		return nil, fmt.Errorf("list boxes: %w", err)
	}
	defer rows.Close()
	var out []domain.EmailBox
	for rows.Next() {
		var b domain.EmailBox
		var active int
		if err := rows.Scan(&b.ID, &b.UserID, &b.EmailServiceID, &b.Username, &b.PasswordCipher, &active); err != nil {
			return nil, fmt.Errorf("scan box: %w", err)
		}
		b.IsActive = active != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetBoxActive flips is_active for pause/resume.
func (s *Store) SetBoxActive(ctx context.Context, id int64, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE email_box SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("set box active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set box active: %w", err)
	}
	if n == 0 {
		return domain.ErrBoxNotFound
	}
	return nil
}

// DeleteBox removes an EmailBox row (filters cascade via FK).
func (s *Store) DeleteBox(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM email_box WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete box: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete box: %w", err)
	}
	if n == 0 {
		return domain.ErrBoxNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
