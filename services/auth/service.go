// Package auth gates the admin surface. Credentials are injected from
// configuration as username/bcrypt-hash pairs; sessions are held in memory
// and expire after the configured window.
package auth

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrNotConfigured      = errors.New("no admin credentials configured")
)

// Credential is one allowed admin login.
type Credential struct {
	User         string
	PasswordHash string
}

// Session is an authenticated admin session.
type Session struct {
	Token     string    `json:"token"`
	User      string    `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service validates logins and tracks active sessions.
type Service struct {
	mu       sync.Mutex
	creds    map[string]string
	ttl      time.Duration
	sessions map[string]Session
	now      func() time.Time
}

// NewService builds the gate from configured credentials and session TTL.
func NewService(credentials []Credential, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	creds := make(map[string]string, len(credentials))
	for _, c := range credentials {
		if c.User == "" || c.PasswordHash == "" {
			continue
		}
		creds[c.User] = c.PasswordHash
	}

	return &Service{
		creds:    creds,
		ttl:      ttl,
		sessions: make(map[string]Session),
		now:      time.Now,
	}
}

// Enabled reports whether any credential is configured.
func (s *Service) Enabled() bool {
	return len(s.creds) > 0
}

// Login checks the credential pair and mints a session on success.
func (s *Service) Login(user, password string) (Session, error) {
	if !s.Enabled() {
		return Session{}, ErrNotConfigured
	}

	hash, ok := s.creds[user]
	if !ok {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	session := Session{
		Token:     uuid.NewString(),
		User:      user,
		ExpiresAt: s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	return session, nil
}

// Validate returns the session for a token if it is still within its window.
func (s *Service) Validate(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if s.now().After(session.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return session, true
}

// Logout discards a session. Unknown tokens are ignored.
func (s *Service) Logout(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}
