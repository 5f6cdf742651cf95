package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Common errors returned by the authentication subsystem.
var (
	ErrDisabled       = errors.New("authentication disabled")
	ErrInvalidToken   = errors.New("invalid token")
	ErrMissingToken   = errors.New("missing bearer token")
	ErrRoleDenied     = errors.New("role denied")
	ErrSubjectRevoked = errors.New("subject is disabled")
)

// Roles recognised by the API surface. A subject's roles gate which
// endpoints it may call; the vault core re-checks the on-chain identity on
// every mutation regardless.
const (
	RoleOwner    = "owner"
	RoleGuardian = "guardian"
	RoleAgent    = "agent"
	RoleSigner   = "signer"
	RoleViewer   = "viewer"
)

// Subject is an authenticated API caller bound to an on-chain identity.
type Subject struct {
	Name     string
	Address  common.Address
	Roles    []string
	Disabled bool

	rolesSet map[string]struct{}
}

func (s *Subject) normalise() {
	if s == nil {
		return
	}
	if s.rolesSet == nil {
		s.rolesSet = make(map[string]struct{}, len(s.Roles))
		for _, role := range s.Roles {
			s.rolesSet[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
		}
	}
}

// HasRole reports whether the subject carries the role.
func (s *Subject) HasRole(role string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	_, ok := s.rolesSet[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// Authorize ensures the subject carries at least one of the given roles.
// With no roles listed any authenticated subject passes.
func (s *Subject) Authorize(roles ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	if s.Disabled {
		return ErrSubjectRevoked
	}
	if len(roles) == 0 {
		return nil
	}
	for _, role := range roles {
		if role == "" {
			continue
		}
		if s.HasRole(role) {
			return nil
		}
	}
	return fmt.Errorf("%w: requires one of %s", ErrRoleDenied, strings.Join(roles, ", "))
}
