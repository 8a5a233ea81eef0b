// Package auth manages the operator session: login against the
// backend, token persistence across restarts, and the login history
// view.
package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/vietpos/terminal/api"
	"github.com/vietpos/terminal/core"
)

// Authenticator is the slice of the API client auth depends on
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	LoginHistory(ctx context.Context) ([]api.UserLoginHistory, error)
}

// TokenSink receives the session token for outbound requests.
// *api.Client satisfies it.
type TokenSink interface {
	SetToken(token string)
	ClearToken()
}

// Session gates the terminal behind a login. A persisted token lets
// the operator skip the login screen after a restart.
type Session struct {
	backend Authenticator
	sink    TokenSink
	store   core.Store
	key     string
	logger  core.Logger

	mu       sync.Mutex
	token    string
	loggedIn bool
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithLogger sets the session logger
func WithLogger(logger core.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session gate. The store and key come from the
// token store configuration.
func NewSession(backend Authenticator, sink TokenSink, store core.Store, cfg *core.Config, opts ...SessionOption) *Session {
	s := &Session{
		backend: backend,
		sink:    sink,
		store:   store,
		key:     cfg.TokenStore.Key,
		logger:  &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resume restores a persisted session. It returns true when a token
// was found and installed; a missing token is not an error.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	token, err := s.store.Get(ctx, s.key)
	if err != nil {
		return false, err
	}
	if token == "" {
		return false, nil
	}

	s.install(token)
	s.logger.Info("Session resumed from stored token", nil)
	return true, nil
}

// Login authenticates the operator. The device location is optional
// and sent only when known.
func (s *Session) Login(ctx context.Context, email, password string, location *api.Coordinates) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &core.ClientError{
			Op:      "auth.Login",
			Kind:    "auth",
			Message: "email and password are required",
			Err:     core.ErrInvalidCredentials,
		}
	}

	resp, err := s.backend.Login(ctx, api.LoginRequest{
		Email:    email,
		Password: password,
		Location: location,
	})
	if err != nil {
		s.logger.Warn("Login failed", map[string]interface{}{
			"email": email,
			"error": err.Error(),
		})
		return err
	}

	if err := s.store.Set(ctx, s.key, resp.Token, 0); err != nil {
		// The session still works for this run; only persistence failed
		s.logger.Error("Failed to persist session token", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.install(resp.Token)
	s.logger.Info("Login succeeded", map[string]interface{}{
		"email": email,
	})
	return nil
}

// Logout drops the session and the persisted token
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.loggedIn = false
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.ClearToken()
	}
	if err := s.store.Delete(ctx, s.key); err != nil {
		return err
	}
	s.logger.Info("Logged out", nil)
	return nil
}

// LoggedIn reports whether an operator session is active
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// Token returns the active session token, empty when logged out
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// History fetches login records for every user. It requires an active
// session.
func (s *Session) History(ctx context.Context) ([]api.UserLoginHistory, error) {
	if !s.LoggedIn() {
		return nil, &core.ClientError{
			Op:      "auth.History",
			Kind:    "auth",
			Message: "log in to view the login history",
			Err:     core.ErrNotAuthenticated,
		}
	}
	return s.backend.LoginHistory(ctx)
}

func (s *Session) install(token string) {
	s.mu.Lock()
	s.token = token
	s.loggedIn = true
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.SetToken(token)
	}
}

// LocationLabel describes where a login happened, preferring the
// backend's resolved string and falling back to a maps link.
func LocationLabel(rec api.LoginRecord) string {
	if rec.LocationStr != "" && rec.LocationStr != "Unknown" {
		return rec.LocationStr
	}
	if rec.Location != nil {
		return rec.Location.MapsURL()
	}
	if rec.LocationStr != "" {
		return rec.LocationStr
	}
	return "Unknown"
}
