package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"mailwatch/internal/domain"
	"mailwatch/internal/store"
)

// newTestServer builds a Server over an in-memory store with no supervisor.
// createUser/userExists only touch the store, so they're exercised directly;
// createBox/deleteBox/pauseBox/resumeBox are excluded since those routes go
// through the supervisor, which needs a live IMAP connection manager and KV
// client.
func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.New(":memory:", nil, 0)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(":0", st, nil), st
}

func TestCreateUser(t *testing.T) {
	s, st := newTestServer(t)

	mux := http.NewServeMux()
	s.routes(mux)

	body, _ := json.Marshal(createUserRequest{TelegramID: 42})
	req := httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /users = %d, want 201", rr.Code)
	}

	exists, err := st.UserExists(context.Background(), 42)
	if err != nil {
		t.Fatalf("UserExists: %v", err)
	}
	if !exists {
		t.Fatal("expected user 42 to exist after create")
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/users", bytes.NewReader(body)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("POST /users (duplicate) = %d, want 400", rr.Code)
	}
}

func TestUserExists(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	if err := st.CreateUser(ctx, 42); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	req := httptest.NewRequest(http.MethodGet, "/users/42/exists", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /users/42/exists = %d, want 200", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/users/7/exists", nil)
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET /users/7/exists = %d, want 404", rr.Code)
	}
}

func TestListBoxesEmptyIs404(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	if err := st.CreateUser(ctx, 42); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	req := httptest.NewRequest(http.MethodGet, "/users/42/boxes", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET /users/42/boxes (empty) = %d, want 404", rr.Code)
	}
}

func TestGetBoxNotOwned(t *testing.T) {
	s, st := newTestServer(t)
	ctx := context.Background()
	st.CreateUser(ctx, 42)
	_, err := st.DB().Exec(`INSERT INTO email_service (title, slug, address, port) VALUES (?, ?, ?, ?)`,
		"Example", "example", "imap.example.com", 993)
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	id, err := st.CreateBox(ctx, domain.EmailBox{UserID: 42, EmailServiceID: 1, Username: "u@x.y", PasswordCipher: "ct", IsActive: true})
	if err != nil {
		t.Fatalf("CreateBox: %v", err)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	req := httptest.NewRequest(http.MethodGet, "/users/99/boxes/"+strconv.FormatInt(id, 10), nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("GET box owned by another user = %d, want 400", rr.Code)
	}
}

func TestListServices(t *testing.T) {
	s, st := newTestServer(t)
	_, err := st.DB().Exec(`INSERT INTO email_service (title, slug, address, port) VALUES (?, ?, ?, ?)`,
		"Example", "example", "imap.example.com", 993)
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	req := httptest.NewRequest(http.MethodGet, "/services", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /services = %d, want 200", rr.Code)
	}
}
