package auth

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	loggerpkg "AegisVault/pkg/logger"
)

// Mode switches the service between enforcing and pass-through behaviour.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeStatic   Mode = "static"
)

// KeyEntry pairs an API key with the subject it authenticates.
type KeyEntry struct {
	Key     string
	Subject Subject
}

// Service authenticates API callers against a static keyring. Keys are
// compared in constant time; the keyring is immutable after construction.
type Service struct {
	mode  Mode
	keys  []KeyEntry
	audit *slog.Logger
}

// NewService builds an authentication service. An empty key set with
// ModeStatic rejects every request.
func NewService(mode Mode, keys []KeyEntry) *Service {
	if mode == "" {
		mode = ModeDisabled
	}
	entries := make([]KeyEntry, 0, len(keys))
	for _, entry := range keys {
		if strings.TrimSpace(entry.Key) == "" {
			continue
		}
		entry.Subject.normalise()
		entries = append(entries, entry)
	}
	return &Service{mode: mode, keys: entries, audit: loggerpkg.Audit()}
}

// Enabled reports whether the service enforces authentication.
func (s *Service) Enabled() bool {
	return s != nil && s.mode != ModeDisabled
}

// Authenticate resolves a bearer token to a subject.
func (s *Service) Authenticate(authorization string) (*Subject, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	token := strings.TrimSpace(authorization)
	if prefix := "bearer "; len(token) >= len(prefix) && strings.EqualFold(token[:len(prefix)], prefix) {
		token = strings.TrimSpace(token[len(prefix):])
	}
	if token == "" {
		return nil, ErrMissingToken
	}
	for i := range s.keys {
		if subtle.ConstantTimeCompare([]byte(s.keys[i].Key), []byte(token)) == 1 {
			subject := s.keys[i].Subject
			if subject.Disabled {
				return nil, ErrSubjectRevoked
			}
			return &subject, nil
		}
	}
	return nil, ErrInvalidToken
}
