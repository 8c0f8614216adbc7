package store

import (
	"context"
	"errors"
	"testing"

	"mailwatch/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndLookupUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, 42); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, 42); !errors.Is(err, domain.ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	exists, err := s.UserExists(ctx, 42)
	if err != nil || !exists {
		t.Fatalf("UserExists(42) = %v, %v; want true, nil", exists, err)
	}
	exists, err = s.UserExists(ctx, 99)
	if err != nil || exists {
		t.Fatalf("UserExists(99) = %v, %v; want false, nil", exists, err)
	}

	users, err := s.ActiveUsers(ctx)
	if err != nil {
		t.Fatalf("ActiveUsers: %v", err)
	}
	if len(users) != 1 || users[0].TelegramID != 42 {
		t.Fatalf("ActiveUsers = %+v, want one user 42", users)
	}
}

func seedService(t *testing.T, s *Store) domain.EmailService {
	t.Helper()
	_, err := s.DB().Exec(`INSERT INTO email_service (title, slug, address, port) VALUES (?, ?, ?, ?)`,
		"Example Mail", "example-mail", "imap.example.com", 993)
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	svc, err := s.Service(context.Background(), 1)
	if err != nil {
		t.Fatalf("Service: %v", err)
	}
	return svc
}

func TestServiceLookup(t *testing.T) {
	s := newTestStore(t)
	svc := seedService(t, s)
	if svc.Address != "imap.example.com" || svc.Port != 993 {
		t.Fatalf("unexpected service: %+v", svc)
	}

	if _, err := s.Service(context.Background(), 404); !errors.Is(err, domain.ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}

	if _, err := s.Services(context.Background()); err != nil {
		t.Fatalf("Services: %v", err)
	}
}

func TestServicesEmptyIsNotAvailable(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Services(context.Background()); !errors.Is(err, domain.ErrServicesNotAvailable) {
		t.Fatalf("expected ErrServicesNotAvailable, got %v", err)
	}
}

func TestBoxLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, 42); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	svc := seedService(t, s)

	id, err := s.CreateBox(ctx, domain.EmailBox{
		UserID:         42,
		EmailServiceID: svc.ID,
		Username:       "u@x.y",
		PasswordCipher: "ct",
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("CreateBox: %v", err)
	}

	box, err := s.Box(ctx, id)
	if err != nil {
		t.Fatalf("Box: %v", err)
	}
	if box.Username != "u@x.y" || !box.IsActive {
		t.Fatalf("unexpected box: %+v", box)
	}

	boxes, err := s.BoxesForUser(ctx, 42)
	if err != nil || len(boxes) != 1 {
		t.Fatalf("BoxesForUser = %+v, %v", boxes, err)
	}

	if err := s.SetBoxActive(ctx, id, false); err != nil {
		t.Fatalf("SetBoxActive: %v", err)
	}
	box, err = s.Box(ctx, id)
	if err != nil || box.IsActive {
		t.Fatalf("expected box paused, got %+v, %v", box, err)
	}

	active, err := s.AllActiveBoxes(ctx)
	if err != nil || len(active) != 0 {
		t.Fatalf("AllActiveBoxes = %+v, %v; want empty", active, err)
	}

	anyBoxes, err := s.BoxesForUserAny(ctx, 42)
	if err != nil || len(anyBoxes) != 1 {
		t.Fatalf("BoxesForUserAny = %+v, %v", anyBoxes, err)
	}

	if err := s.DeleteBox(ctx, id); err != nil {
		t.Fatalf("DeleteBox: %v", err)
	}
	if _, err := s.Box(ctx, id); !errors.Is(err, domain.ErrBoxNotFound) {
		t.Fatalf("expected ErrBoxNotFound after delete, got %v", err)
	}
}

func TestBoxesForUserNoneIsError(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.BoxesForUser(context.Background(), 7); !errors.Is(err, domain.ErrBoxesNotFound) {
		t.Fatalf("expected ErrBoxesNotFound, got %v", err)
	}
}

func TestFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.CreateUser(ctx, 42); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	svc := seedService(t, s)
	id, err := s.CreateBox(ctx, domain.EmailBox{UserID: 42, EmailServiceID: svc.ID, Username: "u@x.y", PasswordCipher: "ct", IsActive: true})
	if err != nil {
		t.Fatalf("CreateBox: %v", err)
	}

	// Empty filter set is not an error; it means "accept all senders".
	filters, err := s.FiltersForBox(ctx, id)
	if err != nil || len(filters) != 0 {
		t.Fatalf("FiltersForBox(empty) = %+v, %v", filters, err)
	}

	if err := s.CreateFilter(ctx, id, domain.BoxFilter{FilterValue: "a@b.c", FilterName: "A"}); err != nil {
		t.Fatalf("CreateFilter: %v", err)
	}
	filters, err = s.FiltersForBox(ctx, id)
	if err != nil || len(filters) != 1 || filters[0].FilterValue != "a@b.c" {
		t.Fatalf("FiltersForBox = %+v, %v", filters, err)
	}

	if set := domain.Whitelist(filters); len(set) != 1 {
		t.Fatalf("Whitelist(filters) = %v, want one entry", set)
	}
	if set := domain.Whitelist(nil); set != nil {
		t.Fatalf("Whitelist(nil) = %v, want nil (accept all)", set)
	}
}
