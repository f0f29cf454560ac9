// Package auth resolves the bearer token sent to the marketplace API.
package auth

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/matmarket/market-cli/internal/config"
	"github.com/matmarket/market-cli/internal/output"
)

// TokenEnv overrides stored credentials when set.
const TokenEnv = "MARKET_TOKEN"

// Manager resolves tokens for the configured base URL.
type Manager struct {
	cfg   *config.Config
	store *Store

	mu sync.Mutex
}

// NewManager creates an auth manager backed by store.
func NewManager(cfg *config.Config, store *Store) *Manager {
	return &Manager{cfg: cfg, store: store}
}

// Status summarizes the current authentication state.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	Origin        string    `json:"origin"`
	Source        string    `json:"source,omitempty"` // "env" or the store location
	Since         time.Time `json:"since,omitzero"`
}

func (m *Manager) origin() string {
	return config.NormalizeBaseURL(m.cfg.BaseURL)
}

// AccessToken returns the token to send, or an auth error when none is
// available. MARKET_TOKEN takes precedence over stored credentials.
func (m *Manager) AccessToken(_ context.Context) (string, error) {
	if token := os.Getenv(TokenEnv); token != "" {
		return token, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	creds, err := m.store.Load(m.origin())
	if errors.Is(err, ErrNotFound) || (err == nil && creds.Token == "") {
		return "", output.ErrAuth("Not authenticated")
	}
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

// IsAuthenticated reports whether a token is available.
func (m *Manager) IsAuthenticated() bool {
	_, err := m.AccessToken(context.Background())
	return err == nil
}

// Login stores token for the configured origin.
func (m *Manager) Login(token string) error {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return output.ErrUsage("Token must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save(m.origin(), &Credentials{Token: token, CreatedAt: time.Now().UTC()})
}

// Logout removes stored credentials for the configured origin.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Delete(m.origin())
}

// Status reports where the token comes from, if anywhere.
func (m *Manager) Status() Status {
	st := Status{Origin: m.origin()}
	if os.Getenv(TokenEnv) != "" {
		st.Authenticated = true
		st.Source = "env"
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	creds, err := m.store.Load(m.origin())
	if err != nil || creds.Token == "" {
		return st
	}
	st.Authenticated = true
	st.Source = m.store.Location()
	st.Since = creds.CreatedAt
	return st
}
