// Package session tracks who is logged in. The logged-in user is persisted
// under its own key so a restart resumes the session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jjudge-oj/roster/internal/kv"
	"github.com/jjudge-oj/roster/internal/metrics"
	"github.com/jjudge-oj/roster/internal/policy"
	"github.com/jjudge-oj/roster/types"
)

// Key is the store key holding the logged-in user.
const Key = "loggedInUser"

// ErrInvalidCredentials is returned for an unknown email, an inactive user
// or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials is a login attempt.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Directory lists the users that may log in.
type Directory interface {
	Local() []types.User
	// LocalGet returns the current record for id or an error when it is gone.
	LocalGet(id int) (types.User, error)
}

// Authenticate finds the active user whose email matches exactly and checks
// the password.
func Authenticate(users []types.User, creds Credentials, verifier *Verifier) (types.User, error) {
	for _, u := range users {
		if u.Email != creds.Email {
			continue
		}
		if !u.IsActive || !verifier.Verify(creds.Password) {
			return types.User{}, ErrInvalidCredentials
		}
		return u, nil
	}
	return types.User{}, ErrInvalidCredentials
}

// Session is the login state machine: idle or authenticated.
type Session struct {
	store    *kv.Store
	users    Directory
	verifier *Verifier
	logger   *slog.Logger

	mu      sync.RWMutex
	current *types.User
}

func New(store *kv.Store, users Directory, verifier *Verifier, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{store: store, users: users, verifier: verifier, logger: logger}
}

// Init restores a persisted session. An unreadable value leaves the session
// idle.
func (s *Session) Init(ctx context.Context) error {
	var stored *types.User
	_, err := s.store.Load(ctx, Key, &stored)
	switch {
	case errors.Is(err, kv.ErrCorrupt):
		s.logger.Warn("ignoring corrupt session", "error", err)
		stored = nil
	case err != nil:
		return fmt.Errorf("load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = stored
	return nil
}

// Login authenticates creds against the directory and persists the user.
// On failure the current state is left as it was.
func (s *Session) Login(ctx context.Context, creds Credentials) (types.User, error) {
	u, err := Authenticate(s.users.Local(), creds, s.verifier)
	metrics.Login(err == nil)
	if err != nil {
		return types.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, Key, u); err != nil {
		return types.User{}, fmt.Errorf("persist session: %w", err)
	}
	s.current = &u
	s.logger.Info("logged in", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// Logout clears the session. It succeeds when already idle.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	if err := s.store.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the logged-in user.
func (s *Session) Current() (types.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return types.User{}, false
	}
	return *s.current, true
}

// Capabilities derives what the current session may do from the logged-in
// user's current directory record. A user removed since login gets None.
func (s *Session) Capabilities() policy.Capabilities {
	s.mu.RLock()
	current := s.current
	s.mu.RUnlock()

	if current == nil {
		return policy.None
	}
	u, err := s.users.LocalGet(current.ID)
	if err != nil {
		return policy.None
	}
	return policy.ForUser(&u)
}
