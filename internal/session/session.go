// Package session manages the persisted login credential: the one piece of
// client state that survives process restarts. The session file is a small
// versioned JSON document so that future field additions do not silently
// break older readers.
package session

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/crewdeck/crewdeck/internal/model"
)

// schemaVersion is the persisted file format version. Loading a file with a
// different version fails closed: the session is treated as logged out.
const schemaVersion = 1

// persisted is the on-disk shape of a session.
type persisted struct {
	Version int        `json:"version"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	SavedAt time.Time  `json:"saved_at"`
}

// Session holds the bearer credential and the logged-in user, backed by a
// file on disk. All methods are safe for concurrent use.
type Session struct {
	path   string
	logger *log.Logger

	mu    sync.Mutex
	token string
	user  model.User
}

// New creates a session backed by the file at path. The file is not read
// until Load is called. If logger is nil, a default stderr logger is used.
func New(path string, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.New(os.Stderr, "[session] ", log.LstdFlags)
	}
	return &Session{path: path, logger: logger}
}

// Load reads the session file into memory. A missing file is not an error:
// it simply means nobody is logged in. A file with an unknown schema version
// is ignored the same way.
func (s *Session) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read session file %s: %w", s.path, err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	if p.Version != schemaVersion {
		s.logger.Printf("Ignoring session file with unknown version %d", p.Version)
		return nil
	}

	s.mu.Lock()
	s.token = p.Token
	s.user = p.User
	s.mu.Unlock()
	return nil
}

// Save stores the credential and user both in memory and on disk. The file
// is written with owner-only permissions.
func (s *Session) Save(token string, user model.User) error {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(persisted{
		Version: schemaVersion,
		Token:   token,
		User:    user,
		SavedAt: time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", s.path, err)
	}
	return nil
}

// Clear wipes the in-memory credential and removes the session file. It is
// idempotent: clearing an already-cleared session is a no-op.
func (s *Session) Clear() error {
	s.mu.Lock()
	wasSet := s.token != ""
	s.token = ""
	s.user = model.User{}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file %s: %w", s.path, err)
	}
	if wasSet {
		s.logger.Println("Session cleared")
	}
	return nil
}

// Token returns the current bearer credential, or "" when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// User returns the logged-in user. Zero value when logged out.
func (s *Session) User() model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Authenticated reports whether a credential is present.
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// TokenExpiry peeks at the credential's exp claim without verifying the
// signature (the server owns verification; the client only wants to know
// whether a call is doomed to 401). The second return is false when the
// token is absent, not a JWT, or carries no expiry.
func (s *Session) TokenExpiry() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the credential carries an expiry in the past.
// Tokens without a readable expiry are assumed live.
func (s *Session) Expired(now time.Time) bool {
	exp, ok := s.TokenExpiry()
	if !ok {
		return false
	}
	return exp.Before(now)
}
