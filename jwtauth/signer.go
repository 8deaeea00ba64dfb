package jwtauth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenDuration is the validity window of issued tokens
const DefaultTokenDuration = 14 * 24 * time.Hour

// Signer issues Ed25519-signed tokens.
// A Signer is immutable after construction and safe for concurrent use.
type Signer struct {
	issuer        string
	key           ed25519.PrivateKey
	tokenDuration time.Duration
	now           func() time.Time
}

// SignerOption is a functional option for configuring a Signer
type SignerOption func(*Signer) error

// NewSigner parses the PEM private key and returns a Signer that stamps tokens with issuer
func NewSigner(issuer string, privateKeyPEM string, opts ...SignerOption) (*Signer, error) {
	key, err := ParseEd25519PrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, err
	}

	s := &Signer{
		issuer:        issuer,
		key:           key,
		tokenDuration: DefaultTokenDuration,
		now:           time.Now,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, NewValidationError(ErrConfigError, fmt.Sprintf("signer configuration error: %v", err), err)
		}
	}

	return s, nil
}

// WithTokenDuration sets how long issued tokens stay valid
func WithTokenDuration(d time.Duration) SignerOption {
	return func(s *Signer) error {
		if d <= 0 {
			return fmt.Errorf("token duration must be positive, got %v", d)
		}
		s.tokenDuration = d
		return nil
	}
}

// WithSignerClock replaces the time source used for iat/exp
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		s.now = now
		return nil
	}
}

// Sign issues a token whose data claim carries the given value
func (s *Signer) Sign(data string) (string, error) {
	issuedAt := s.now()
	claims := tokenClaims{
		Data: data,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   tokenSubject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.tokenDuration)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return "", NewValidationError(ErrSigningFailed, "failed to sign token", err)
	}
	return token, nil
}

// Issuer returns the issuer stamped into every token
func (s *Signer) Issuer() string {
	return s.issuer
}

// TokenDuration returns the validity window of issued tokens
func (s *Signer) TokenDuration() time.Duration {
	return s.tokenDuration
}
