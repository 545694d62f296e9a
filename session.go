/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
	RoleDev   Role = "dev"
)

func (r Role) valid() bool {
	switch r {
	case RoleStaff, RoleAdmin, RoleDev:
		return true
	}
	return false
}

// AdminLike reports whether the role may manage decks and passwords.
func (r Role) AdminLike() bool {
	return r == RoleAdmin || r == RoleDev
}

// Capability is a tier of actions a view may offer.
type Capability int

const (
	CapPlay Capability = iota
	CapManage
)

func (c Capability) String() string {
	if c == CapManage {
		return "admin-like"
	}
	return "play-only"
}

type Session struct {
	Token string
	Role  Role

	// Expires is read from the token's exp claim; zero when the token
	// carries none.
	Expires time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.Expires.IsZero() && now.After(s.Expires)
}

type authenticator interface {
	Login(ctx context.Context, password string) (*LoginResult, error)
}

// SessionStore owns the single active Session of this client instance.
type SessionStore struct {
	mu      sync.RWMutex
	storage Storage
	current *Session
	now     func() time.Time
}

// newSessionStore restores whatever Session was persisted in storage.
func newSessionStore(storage Storage) *SessionStore {
	s := &SessionStore{storage: storage, now: time.Now}
	s.restore()
	return s
}

func (s *SessionStore) restore() {
	token, _ := s.storage.Get(tokenKey)
	role, _ := s.storage.Get(roleKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || role == "" {
		s.current = nil
		return
	}

	s.current = &Session{
		Token:   token,
		Role:    Role(role),
		Expires: tokenExpiry(token),
	}
}

// Reload re-reads the persisted Session, for storage changed by another
// process.
func (s *SessionStore) Reload() error {
	if fs, ok := s.storage.(*fileStorage); ok {
		if err := fs.reload(); err != nil {
			return err
		}
	}
	s.restore()
	return nil
}

// Current is the Session persisted at startup or set by Login.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Token satisfies the client's token source; "" without a Session.
func (s *SessionStore) Token() string {
	sess, ok := s.Current()
	if !ok {
		return ""
	}
	return sess.Token
}

// Login exchanges the shared password for a Session. A failed attempt
// leaves any existing Session untouched.
func (s *SessionStore) Login(ctx context.Context, auth authenticator, password string) (Session, error) {
	res, err := auth.Login(ctx, password)
	if err != nil {
		return Session{}, err
	}

	sess := Session{
		Token:   res.Token,
		Role:    res.Role,
		Expires: tokenExpiry(res.Token),
	}

	if err := s.storage.SetAll(map[string]string{
		tokenKey: sess.Token,
		roleKey:  string(sess.Role),
	}); err != nil {
		return Session{}, err
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()

	return sess, nil
}

// Logout clears the Session unconditionally. Calling it twice is harmless.
func (s *SessionStore) Logout() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	return s.storage.Delete(tokenKey, roleKey)
}

// Require gates a view or action client-side. The backend still rejects
// unauthorized calls on its own.
func (s *SessionStore) Require(c Capability) (Session, error) {
	sess, ok := s.Current()
	if !ok || sess.Token == "" {
		return Session{}, authError("Please log in.")
	}
	if sess.Expired(s.now()) {
		return Session{}, authError("Session expired. Please log in again.")
	}
	if c == CapManage && !sess.Role.AdminLike() {
		return Session{}, permissionError("Admin privileges required.")
	}
	return sess, nil
}

// tokenExpiry reads exp without verifying the signature; only the backend
// holds the key.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
