// tokengen generates Ed25519 key pairs and signs tokens for the echo service.
//
//	tokengen --generate --out-dir ./keys
//	tokengen --private-key ./keys/private.pem --data alice
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/Wang-tianhao/echo-auth-service/jwtauth"
)

func main() {
	var (
		generate       bool
		outDir         string
		privateKeyPath string
		publicKeyPath  string
		issuer         string
		data           string
		duration       time.Duration
	)

	flagSet := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	flagSet.BoolVar(&generate, "generate", false, "generate a new Ed25519 key pair")
	flagSet.StringVar(&outDir, "out-dir", "", "write private.pem and public.pem here instead of stdout (with --generate)")
	flagSet.StringVar(&privateKeyPath, "private-key", "", "PKCS#8 PEM private key used to sign")
	flagSet.StringVar(&publicKeyPath, "public-key", "", "PKIX PEM public key used to verify the issued token")
	flagSet.StringVar(&issuer, "issuer", "echo-service", "token issuer")
	flagSet.StringVar(&data, "data", "user123", "value of the data claim (the username)")
	flagSet.DurationVar(&duration, "duration", jwtauth.DefaultTokenDuration, "token validity")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return
		}
		log.Fatalf("Flag error: %v", err)
	}

	if generate {
		if err := generateKeys(outDir); err != nil {
			log.Fatalf("Failed to generate keys: %v", err)
		}
		return
	}

	if privateKeyPath == "" {
		log.Fatal("Either --generate or --private-key is required")
	}

	if err := signToken(privateKeyPath, publicKeyPath, issuer, data, duration); err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
}

func generateKeys(outDir string) error {
	keys, err := jwtauth.GenerateKeyMaterial()
	if err != nil {
		return err
	}

	if outDir == "" {
		fmt.Print(keys.PrivateKeyPEM)
		fmt.Print(keys.PublicKeyPEM)
		return nil
	}

	if err := os.MkdirAll(outDir, 0o700); err != nil {
		return err
	}
	privatePath := filepath.Join(outDir, "private.pem")
	publicPath := filepath.Join(outDir, "public.pem")
	if err := os.WriteFile(privatePath, []byte(keys.PrivateKeyPEM), 0o600); err != nil {
		return err
	}
	if err := os.WriteFile(publicPath, []byte(keys.PublicKeyPEM), 0o644); err != nil {
		return err
	}

	fmt.Println("\n=== Ed25519 Key Pair Generated ===")
	fmt.Printf("\n  Private key: %s\n  Public key:  %s\n\n", privatePath, publicPath)
	fmt.Println("Usage:")
	fmt.Printf("  AUTH_PRIVATE_KEY_FILE=%s AUTH_PUBLIC_KEY_FILE=%s echo-server\n\n", privatePath, publicPath)
	return nil
}

func signToken(privateKeyPath, publicKeyPath, issuer, data string, duration time.Duration) error {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return err
	}

	signer, err := jwtauth.NewSigner(issuer, string(privatePEM), jwtauth.WithTokenDuration(duration))
	if err != nil {
		return err
	}
	token, err := signer.Sign(data)
	if err != nil {
		return err
	}

	if publicKeyPath != "" {
		publicPEM, err := os.ReadFile(publicKeyPath)
		if err != nil {
			return err
		}
		verifier, err := jwtauth.NewVerifier(issuer, string(publicPEM), jwtauth.WithIssuerCheck())
		if err != nil {
			return err
		}
		if _, err := verifier.Verify(token); err != nil {
			return fmt.Errorf("issued token does not verify with %s: %w", publicKeyPath, err)
		}
	}

	fmt.Println("\n=== Token Generated ===")
	fmt.Printf("\nToken: %s\n\n", token)
	fmt.Println("Claims:")
	fmt.Printf("  Issuer:  %s\n", issuer)
	fmt.Printf("  Data:    %s\n", data)
	fmt.Printf("  Expires: %s\n\n", time.Now().Add(duration).Format(time.RFC3339))
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' http://localhost:3000/api/whoami\n\n", token)
	return nil
}
