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

// Service returns the EmailService with the given id, cached by id.
func (s *Store) Service(ctx context.Context, id int64) (domain.EmailService, error) {
	args := map[string]string{"id": strconv.FormatInt(id, 10)}
	return memoize(ctx, s, kv.TplEmailService, args, func(ctx context.Context) (domain.EmailService, error) {
		var svc domain.EmailService
		err := s.db.QueryRowContext(ctx,
			`SELECT id, title, slug, address, port FROM email_service WHERE id = ?`, id,
		).Scan(&svc.ID, &svc.Title, &svc.Slug, &svc.Address, &svc.Port)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.EmailService{}, domain.ErrServiceNotFound
		}
		if err != nil {
			return domain.EmailService{}, fmt.Errorf("get service: %w", err)
		}
		return svc, nil
	})
}

// Services returns every EmailService, or ErrServicesNotAvailable if none
// exist, cached as a full list.
func (s *Store) Services(ctx context.Context) ([]domain.EmailService, error) {
	return memoize(ctx, s, kv.TplEmailServices, nil, func(ctx context.Context) ([]domain.EmailService, error) {
		rows, err := s.db.QueryContext(ctx, `SELECT id, title, slug, address, port FROM email_service ORDER BY id`)
		if err != nil {
			return nil, fmt.Errorf("list services: %w", err)
		}
		defer rows.Close()
		var out []domain.EmailService
		for rows.Next() {
			var svc domain.EmailService
			if err := rows.Scan(&svc.ID, &svc.Title, &svc.Slug, &svc.Address, &svc.Port); err != nil {
				return nil, fmt.Errorf("scan service: %w", err)
			}
			out = append(out, svc)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, domain.ErrServicesNotAvailable
		}
		return out, nil
	})
}
