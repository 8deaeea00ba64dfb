package jwtauth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates tokens issued by a Signer holding the matching private key.
// A Verifier is immutable after construction and safe for concurrent use.
//
// The issuer claim is not compared against the verifier's own issuer unless
// WithIssuerCheck is given: any token signed by the matching private key is
// accepted regardless of which service instance issued it.
type Verifier struct {
	issuer      string
	key         ed25519.PublicKey
	checkIssuer bool
	leeway      time.Duration
	now         func() time.Time
}

// VerifierOption is a functional option for configuring a Verifier
type VerifierOption func(*Verifier) error

// NewVerifier parses the PEM public key and returns a Verifier
func NewVerifier(issuer string, publicKeyPEM string, opts ...VerifierOption) (*Verifier, error) {
	key, err := ParseEd25519PublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, err
	}

	v := &Verifier{
		issuer: issuer,
		key:    key,
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(v); err != nil {
			return nil, NewValidationError(ErrConfigError, fmt.Sprintf("verifier configuration error: %v", err), err)
		}
	}

	return v, nil
}

// WithIssuerCheck rejects tokens whose iss claim differs from the verifier's issuer
func WithIssuerCheck() VerifierOption {
	return func(v *Verifier) error {
		if v.issuer == "" {
			return fmt.Errorf("issuer check requires a non-empty issuer")
		}
		v.checkIssuer = true
		return nil
	}
}

// WithLeeway sets the clock skew tolerance for exp validation
func WithLeeway(leeway time.Duration) VerifierOption {
	return func(v *Verifier) error {
		if leeway < 0 {
			return fmt.Errorf("leeway must be non-negative, got %v", leeway)
		}
		v.leeway = leeway
		return nil
	}
}

// WithVerifierClock replaces the time source used for expiry checks
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) error {
		if now == nil {
			return fmt.Errorf("clock cannot be nil")
		}
		v.now = now
		return nil
	}
}

// Verify checks the token signature and expiry and returns its claims
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
		jwt.WithLeeway(v.leeway),
	}
	if v.checkIssuer {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	wire := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, wire, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	}, parserOpts...)
	if err != nil {
		return nil, classifyParseError(err)
	}
	if !token.Valid {
		return nil, NewValidationError(ErrInvalidSignature, "token is invalid", nil)
	}

	return wire.toClaims(), nil
}

// Issuer returns the verifier's own issuer name
func (v *Verifier) Issuer() string {
	return v.issuer
}

// classifyParseError maps jwt library errors onto error codes
func classifyParseError(err error) *ValidationError {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return NewValidationError(ErrMalformed, "malformed token", err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return NewValidationError(ErrExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return NewValidationError(ErrMalformed, "required claim missing", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return NewValidationError(ErrInvalidSignature, "unexpected issuer", err)
	default:
		return NewValidationError(ErrInvalidSignature, "signature verification failed", err)
	}
}
