// Package imapconn manages a single IMAPS session per mailbox: probing
// credentials, opening and closing the connection, and tracking whether an
// IDLE command is currently outstanding.
package imapconn

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	imap "github.com/emersion/go-imap"
	idle "github.com/emersion/go-imap-idle"
	"github.com/emersion/go-imap/client"

	"mailwatch/internal/domain"
)

// probeTimeout bounds the TCP/TLS dial and the LOGOUT issued by Close.
const probeTimeout = 30 * time.Second

// Manager owns one IMAPS session for one mailbox.
type Manager struct {
	host, user, password string

	mu          sync.Mutex
	c           *client.Client
	idlePending bool
}

// New binds a Manager to one mailbox's credentials. Host is "host:port".
func New(host, user, password string) *Manager {
	return &Manager{host: host, user: user, password: password}
}

// Probe opens a transient IMAPS session, logs in and immediately logs out,
// reporting whether the credentials are valid. It never mutates m's
// persistent session.
func (m *Manager) Probe() (bool, error) {
	c, err := dial(m.host, probeTimeout)
	if err != nil {
		return false, fmt.Errorf("probe dial: %w", domain.ErrServerTimeout)
	}
	defer c.Logout()
	if err := c.Login(m.user, m.password); err != nil {
		return false, nil
	}
	return true, nil
}

// Open lazily establishes the persistent session: dial, LOGIN, SELECT INBOX.
// A prior failed LOGIN surfaces domain.ErrCredentialsInvalid and leaves m
// closed. Calling Open on an already-open Manager is a no-op.
func (m *Manager) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c != nil {
		return nil
	}
	c, err := dial(m.host, probeTimeout)
	if err != nil {
		return fmt.Errorf("open dial: %w", domain.ErrServerTimeout)
	}
	if err := c.Login(m.user, m.password); err != nil {
		c.Logout()
		return domain.ErrCredentialsInvalid
	}
	if _, err := c.Select("INBOX", false); err != nil {
		c.Logout()
		return fmt.Errorf("select inbox: %w", err)
	}
	m.c = c
	return nil
}

// IsIdlePending reports whether an IDLE command is currently outstanding.
func (m *Manager) IsIdlePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.idlePending
}

func (m *Manager) setIdlePending(v bool) {
	m.mu.Lock()
	m.idlePending = v
	m.mu.Unlock()
}

// Close logs out of the persistent session if one is open.
func (m *Manager) Close() error {
	m.mu.Lock()
	c := m.c
	m.c = nil
	m.mu.Unlock()
	if c == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- c.Logout() }()
	select {
	case err := <-done:
		return err
	case <-time.After(probeTimeout):
		return domain.ErrServerTimeout
	}
}

// Raw returns the underlying client for use by the IDLE cycle in package
// worker; callers must hold no assumption about it surviving a Close/reset.
func (m *Manager) Raw() *client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c
}

// Connected reports whether the persistent session is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c != nil
}

// Reset discards the persistent session without a clean LOGOUT, used after
// an IMAP error so the worker can reconnect from scratch.
func (m *Manager) Reset() {
	m.mu.Lock()
	c := m.c
	m.c = nil
	m.idlePending = false
	m.mu.Unlock()
	if c != nil {
		_ = c.Terminate()
	}
}

// NewIdleClient wraps m's raw client in an IDLE command session. It does not
// change idlePending; the caller sets it with MarkIdlePending.
func (m *Manager) NewIdleClient() (*idle.Client, error) {
	raw := m.Raw()
	if raw == nil {
		return nil, domain.ErrNotConnected
	}
	return idle.NewClient(raw), nil
}

// MarkIdlePending flips the idle-pending flag; called by the IDLE cycle
// around IdleWithFallback.
func (m *Manager) MarkIdlePending(v bool) { m.setIdlePending(v) }

func dial(addr string, timeout time.Duration) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: timeout}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	c, err := client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: host})
	if err != nil {
		return nil, err
	}
	return c, nil
}
