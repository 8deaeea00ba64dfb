package jwtauth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
)

const testIssuer = "echo-service"

// mustGenerateKeyMaterial generates a fresh Ed25519 key pair or fails the test
func mustGenerateKeyMaterial(t testing.TB) *KeyMaterial {
	t.Helper()
	keys, err := GenerateKeyMaterial()
	if err != nil {
		t.Fatalf("Failed to generate key material: %v", err)
	}
	return keys
}

// mustNewSigner creates a signer or fails the test
func mustNewSigner(t testing.TB, keys *KeyMaterial, opts ...SignerOption) *Signer {
	t.Helper()
	signer, err := NewSigner(testIssuer, keys.PrivateKeyPEM, opts...)
	if err != nil {
		t.Fatalf("Failed to create signer: %v", err)
	}
	return signer
}

// mustNewVerifier creates a verifier or fails the test
func mustNewVerifier(t testing.TB, keys *KeyMaterial, opts ...VerifierOption) *Verifier {
	t.Helper()
	verifier, err := NewVerifier(testIssuer, keys.PublicKeyPEM, opts...)
	if err != nil {
		t.Fatalf("Failed to create verifier: %v", err)
	}
	return verifier
}

// mustSign signs data or fails the test
func mustSign(t testing.TB, signer *Signer, data string) string {
	t.Helper()
	token, err := signer.Sign(data)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

// mustCreateConfig creates a middleware config or fails the test
func mustCreateConfig(t testing.TB, opts ...ConfigOption) *Config {
	t.Helper()
	cfg, err := NewConfig(opts...)
	if err != nil {
		t.Fatalf("Failed to create config: %v", err)
	}
	return cfg
}

// rsaPrivateKeyPEM returns a PKCS#8 RSA private key, used to check key type rejection
func rsaPrivateKeyPEM(t testing.TB) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("Failed to encode RSA key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

// rsaPublicKeyPEM returns a PKIX RSA public key
func rsaPublicKeyPEM(t testing.TB) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("Failed to encode RSA key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// assertErrorCode checks that err is a ValidationError with the expected code
func assertErrorCode(t testing.TB, err error, want ErrorCode) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %s, got nil", want)
	}
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("expected ValidationError, got %T: %v", err, err)
	}
	if valErr.Code != want {
		t.Errorf("expected error code %s, got %s (%v)", want, valErr.Code, err)
	}
}
