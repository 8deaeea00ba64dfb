package jwtauth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeyMaterial holds a PEM-encoded Ed25519 key pair.
// The private key is PKCS#8, the public key is PKIX (X.509).
type KeyMaterial struct {
	PrivateKeyPEM string
	PublicKeyPEM  string
}

// GenerateKeyMaterial creates a fresh Ed25519 key pair
func GenerateKeyMaterial() (*KeyMaterial, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 key pair: %w", err)
	}

	privateDER, err := x509.MarshalPKCS8PrivateKey(private)
	if err != nil {
		return nil, fmt.Errorf("encoding private key: %w", err)
	}
	publicDER, err := x509.MarshalPKIXPublicKey(public)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}

	return &KeyMaterial{
		PrivateKeyPEM: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})),
		PublicKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})),
	}, nil
}

// Validate checks that both keys parse and that the public key belongs to the private key
func (k *KeyMaterial) Validate() error {
	private, err := ParseEd25519PrivateKeyFromPEM([]byte(k.PrivateKeyPEM))
	if err != nil {
		return err
	}
	public, err := ParseEd25519PublicKeyFromPEM([]byte(k.PublicKeyPEM))
	if err != nil {
		return err
	}

	derived, ok := private.Public().(ed25519.PublicKey)
	if !ok || !derived.Equal(public) {
		return NewValidationError(ErrKeyFormatInvalid, "public key does not match private key", nil)
	}
	return nil
}

// ParseEd25519PrivateKeyFromPEM parses a PKCS#8 Ed25519 private key
func ParseEd25519PrivateKeyFromPEM(pemBytes []byte) (ed25519.PrivateKey, error) {
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, NewValidationError(ErrKeyFormatInvalid, "invalid Ed25519 private key", err)
	}

	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, NewValidationError(ErrKeyFormatInvalid, fmt.Sprintf("key is not an Ed25519 private key: %T", parsed), nil)
	}
	return key, nil
}

// ParseEd25519PublicKeyFromPEM parses a PKIX Ed25519 public key
func ParseEd25519PublicKeyFromPEM(pemBytes []byte) (ed25519.PublicKey, error) {
	parsed, err := jwt.ParseEdPublicKeyFromPEM(pemBytes)
	if err != nil {
		return nil, NewValidationError(ErrKeyFormatInvalid, "invalid Ed25519 public key", err)
	}

	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, NewValidationError(ErrKeyFormatInvalid, fmt.Sprintf("key is not an Ed25519 public key: %T", parsed), nil)
	}
	return key, nil
}
