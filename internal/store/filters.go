package store

import (
	"context"
	"fmt"
	"strconv"

	"mailwatch/internal/domain"
	"mailwatch/internal/kv"
)

// CreateFilter inserts one BoxFilter row for box.
func (s *Store) CreateFilter(ctx context.Context, boxID int64, f domain.BoxFilter) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO box_filter (box_id, filter_value, filter_name) VALUES (?, ?, ?)`,
		boxID, f.FilterValue, nullableString(f.FilterName),
	)
	if err != nil {
		return fmt.Errorf("create filter: %w", err)
	}
	return nil
}

// FiltersForBox returns every BoxFilter for boxID. An empty, non-error
// result means "no whitelist" (accept all senders). Cached per box.
func (s *Store) FiltersForBox(ctx context.Context, boxID int64) ([]domain.BoxFilter, error) {
	args := map[string]string{"id": strconv.FormatInt(boxID, 10)}
	return memoize(ctx, s, kv.TplBoxFilters, args, func(ctx context.Context) ([]domain.BoxFilter, error) {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, box_id, filter_value, COALESCE(filter_name, '') FROM box_filter WHERE box_id = ? ORDER BY id`, boxID)
		if err != nil {
			return nil, fmt.Errorf("list filters: %w", err)
		}
		defer rows.Close()
		var out []domain.BoxFilter
		for rows.Next() {
			var f domain.BoxFilter
			if err := rows.Scan(&f.ID, &f.BoxID, &f.FilterValue, &f.FilterName); err != nil {
				return nil, fmt.Errorf("scan filter: %w", err)
			}
			out = append(out, f)
		}
		return out, rows.Err()
	})
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
