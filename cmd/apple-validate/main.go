package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-utils-applex"
)

func main() {
	envPath := defaultEnvPath()
	if err := loadEnvFile(envPath); err != nil {
		log.Printf("warning: load %s: %v", envPath, err)
	}

	var (
		defaultClientID = os.Getenv("APPLE_CLIENT_ID")
		defaultKeysURL  = os.Getenv("APPLE_KEYS_URL")
		defaultToken    = os.Getenv("APPLE_ID_TOKEN")
	)

	clientID := flag.String("client-id", defaultClientID, "Expected audience / Apple client ID (env APPLE_CLIENT_ID)")
	keysURL := flag.String("keys-url", defaultKeysURL, "Apple key publication endpoint (env APPLE_KEYS_URL)")
	token := flag.String("token", defaultToken, "Apple identity token to verify (env APPLE_ID_TOKEN)")
	timeout := flag.Duration("timeout", 10*time.Second, "Timeout for the whole verification call")
	envFlag := flag.String("env", envPath, "Path to .env file")
	flag.Parse()

	if *envFlag != "" && *envFlag != envPath {
		if err := loadEnvFile(*envFlag); err != nil {
			log.Printf("warning: load %s: %v", *envFlag, err)
		}
		reloadDefaults(clientID, keysURL, token)
	}

	if *clientID == "" {
		flag.Usage()
		log.Fatal("client-id is required (via flag, .env, or environment variables)")
	}
	if *token == "" {
		flag.Usage()
		log.Fatal("token is required (via flag, .env, or environment variables)")
	}

	verifier := applex.NewVerifier(applex.Config{
		ClientID: *clientID,
		KeysURL:  *keysURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	claims, err := verifier.Verify(ctx, *token)
	if err != nil {
		log.Fatalf("verification failed [%s]: %v", applex.CodeOf(err), err)
	}

	printClaims(claims)
}

func printClaims(claims *applex.Claims) {
	fmt.Println("== Apple Identity Token Verified ==")
	fmt.Printf("subject        : %s\n", claims.Subject)
	fmt.Printf("email          : %s\n", claims.Email)
	fmt.Printf("email_verified : %t\n", claims.EmailVerified)
	fmt.Printf("private_email  : %t\n", claims.IsPrivateEmail)
	fmt.Printf("issuer         : %s\n", claims.Issuer)
	fmt.Printf("audience       : %s\n", claims.Audience)
	if !claims.ExpiresAt.IsZero() {
		fmt.Printf("expires_at     : %s\n", claims.ExpiresAt.Format(time.RFC3339))
	}
	if !claims.IssuedAt.IsZero() {
		fmt.Printf("issued_at      : %s\n", claims.IssuedAt.Format(time.RFC3339))
	}
}

func defaultEnvPath() string {
	if path := os.Getenv("APPLEX_ENV_FILE"); path != "" {
		return path
	}
	return ".env"
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			log.Printf("warning: invalid line %d in %s", lineNum, filepath.Base(path))
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			log.Printf("warning: set env %s: %v", key, err)
		}
	}
	return scanner.Err()
}

func reloadDefaults(clientID, keysURL, token *string) {
	if clientID != nil && *clientID == "" {
		*clientID = os.Getenv("APPLE_CLIENT_ID")
	}
	if keysURL != nil && *keysURL == "" {
		*keysURL = os.Getenv("APPLE_KEYS_URL")
	}
	if token != nil && *token == "" {
		*token = os.Getenv("APPLE_ID_TOKEN")
	}
}
