package jwtauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSubject is the fixed sub claim of every issued token
const tokenSubject = "auth"

// Claims represents the verified identity carried by a token
type Claims struct {
	Subject    string    // Always "auth" for tokens issued by Signer (sub claim)
	Issuer     string    // Signing service instance (iss claim)
	CustomData string    // Authenticated username (data claim)
	IssuedAt   time.Time // Issue time (iat claim)
	ExpiresAt  time.Time // Expiration time (exp claim)
}

// tokenClaims is the wire form of Claims
type tokenClaims struct {
	Data string `json:"data"`
	jwt.RegisteredClaims
}

// toClaims converts wire claims into the public Claims value
func (tc *tokenClaims) toClaims() *Claims {
	claims := &Claims{
		Subject:    tc.Subject,
		Issuer:     tc.Issuer,
		CustomData: tc.Data,
	}
	if tc.IssuedAt != nil {
		claims.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims
}
