// Package auth maps bearer tokens to user identities.
package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken is returned when a token maps to no identity.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID         string
	OrganizationID string
}

// Verifier resolves bearer tokens. Implementations must be safe for
// concurrent use.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier verifies against a fixed token table loaded from
// configuration at startup.
type StaticVerifier struct {
	tokens map[string]Identity
}

// NewStaticVerifier builds a verifier from a token → identity map.
func NewStaticVerifier(tokens map[string]Identity) *StaticVerifier {
	cloned := make(map[string]Identity, len(tokens))
	for k, v := range tokens {
		cloned[k] = v
	}
	return &StaticVerifier{tokens: cloned}
}

// Verify resolves the token or returns ErrInvalidToken.
func (v *StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	id, ok := v.tokens[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
