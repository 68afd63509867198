// Package session holds the operator's authenticated state.
//
// A Session exists only after a successful credential check. Its state is
// persisted in a Store under fixed keys (auth, apiUrl, apiKey) namespaced by
// the session id; a missing auth key means unauthenticated.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Persisted keys.
const (
	KeyAuth   = "auth"
	KeyAPIURL = "apiUrl"
	KeyAPIKey = "apiKey"
	KeyFlash  = "flash"
)

var (
	// ErrNoSession means no authenticated state is persisted for the id.
	ErrNoSession = errors.New("session: not authenticated")
	// ErrLoginRejected is returned when the verifier refuses the credentials.
	ErrLoginRejected = errors.New("session: login rejected")
)

// Credentials identify the submission service an operator works against.
// In password mode Username/Password are set and the verifier fills in the
// configured endpoint.
type Credentials struct {
	APIURL   string
	APIKey   string
	Username string
	Password string
}

// Verifier checks login credentials and returns the endpoint credentials to
// persist. It returns ErrLoginRejected for bad credentials and any other error
// when the check itself could not be performed.
type Verifier interface {
	Verify(ctx context.Context, c Credentials) (Credentials, error)
}

// Session is one operator's authenticated state.
type Session struct {
	ID string

	mu            sync.RWMutex
	authenticated bool
	creds         Credentials
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticated
}

// Credentials returns the persisted endpoint credentials.
func (s *Session) Credentials() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Flash is a dismissible notification shown on the next page render.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Manager creates, loads and destroys sessions.
type Manager struct {
	store    Store
	verifier Verifier
	prefix   string
	ttl      time.Duration

	mu       sync.Mutex
	onLogout []func(id string)
}

// NewManager wires a Manager. store and verifier are required.
func NewManager(store Store, verifier Verifier, prefix string, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session: nil store")
	}
	if verifier == nil {
		return nil, errors.New("session: nil verifier")
	}
	return &Manager{store: store, verifier: verifier, prefix: prefix, ttl: ttl}, nil
}

// OnLogout registers a callback run after a session is destroyed.
func (m *Manager) OnLogout(fn func(id string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLogout = append(m.onLogout, fn)
}

func (m *Manager) key(id, name string) string {
	return m.prefix + id + ":" + name
}

// Login verifies creds and, on success, persists the new session before
// returning it as authenticated.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*Session, error) {
	verified, err := m.verifier.Verify(ctx, creds)
	if err != nil {
		return nil, err
	}

	s := &Session{ID: uuid.NewString()}
	values := []struct{ k, v string }{
		{KeyAPIURL, verified.APIURL},
		{KeyAPIKey, verified.APIKey},
		// auth last: a partially written session must not read as authenticated
		{KeyAuth, "true"},
	}
	for _, kv := range values {
		if err := m.store.Set(ctx, m.key(s.ID, kv.k), kv.v, m.ttl); err != nil {
			m.store.Delete(ctx, m.key(s.ID, KeyAPIURL), m.key(s.ID, KeyAPIKey), m.key(s.ID, KeyAuth))
			return nil, fmt.Errorf("session: persist %s: %w", kv.k, err)
		}
	}

	s.mu.Lock()
	s.creds = Credentials{APIURL: verified.APIURL, APIKey: verified.APIKey}
	s.authenticated = true
	s.mu.Unlock()
	return s, nil
}

// Load restores a session from the store. It returns ErrNoSession when the
// auth flag is absent.
func (m *Manager) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	flag, ok, err := m.store.Get(ctx, m.key(id, KeyAuth))
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	if !ok || flag != "true" {
		return nil, ErrNoSession
	}
	apiURL, _, err := m.store.Get(ctx, m.key(id, KeyAPIURL))
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	apiKey, _, err := m.store.Get(ctx, m.key(id, KeyAPIKey))
	if err != nil {
		return nil, fmt.Errorf("session: load: %w", err)
	}
	return &Session{
		ID:            id,
		authenticated: true,
		creds:         Credentials{APIURL: apiURL, APIKey: apiKey},
	}, nil
}

// Logout clears the persisted state and marks s unauthenticated.
func (m *Manager) Logout(ctx context.Context, s *Session) error {
	err := m.store.Delete(ctx,
		m.key(s.ID, KeyAuth),
		m.key(s.ID, KeyAPIURL),
		m.key(s.ID, KeyAPIKey),
		m.key(s.ID, KeyFlash),
	)
	s.mu.Lock()
	s.authenticated = false
	s.creds = Credentials{}
	s.mu.Unlock()

	m.mu.Lock()
	hooks := append([]func(string){}, m.onLogout...)
	m.mu.Unlock()
	for _, fn := range hooks {
		fn(s.ID)
	}

	if err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}
	return nil
}

// SetFlash stores a notification for the next render.
func (m *Manager) SetFlash(ctx context.Context, s *Session, f Flash) error {
	return m.store.Set(ctx, m.key(s.ID, KeyFlash), encodeFlash(f), m.ttl)
}

// TakeFlash returns and clears the pending notification, if any.
func (m *Manager) TakeFlash(ctx context.Context, s *Session) (*Flash, error) {
	v, ok, err := m.store.Get(ctx, m.key(s.ID, KeyFlash))
	if err != nil || !ok {
		return nil, err
	}
	if err := m.store.Delete(ctx, m.key(s.ID, KeyFlash)); err != nil {
		return nil, err
	}
	f, err := decodeFlash(v)
	if err != nil {
		return nil, nil
	}
	return f, nil
}
