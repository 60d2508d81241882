package main

import (
	"bufio"
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
		defaultTeamID   = os.Getenv("APPLE_TEAM_ID")
		defaultKeyID    = os.Getenv("APPLE_KEY_ID")
		defaultClientID = os.Getenv("APPLE_CLIENT_ID")
		defaultKeyPath  = os.Getenv("APPLE_PRIVATE_KEY_PATH")
	)

	teamID := flag.String("team-id", defaultTeamID, "Apple developer team ID (env APPLE_TEAM_ID)")
	keyID := flag.String("key-id", defaultKeyID, "Apple signing key ID (env APPLE_KEY_ID)")
	clientID := flag.String("client-id", defaultClientID, "Apple client ID / Services ID (env APPLE_CLIENT_ID)")
	keyPath := flag.String("key", defaultKeyPath, "Path to the .p8 private key file (env APPLE_PRIVATE_KEY_PATH)")
	ttl := flag.Duration("ttl", time.Hour, "Client secret validity (max six months)")
	envFlag := flag.String("env", envPath, "Path to .env file")
	flag.Parse()

	if *envFlag != "" && *envFlag != envPath {
		if err := loadEnvFile(*envFlag); err != nil {
			log.Printf("warning: load %s: %v", *envFlag, err)
		}
		reloadDefaults(teamID, keyID, clientID, keyPath)
	}

	if *teamID == "" || *keyID == "" || *clientID == "" || *keyPath == "" {
		flag.Usage()
		log.Fatal("team-id, key-id, client-id, and key are required (via flags, .env, or environment variables)")
	}

	pemBytes, err := os.ReadFile(*keyPath)
	if err != nil {
		log.Fatalf("read private key: %v", err)
	}
	privateKey, err := applex.ParsePrivateKey(pemBytes)
	if err != nil {
		log.Fatalf("parse private key: %v", err)
	}

	source, err := applex.NewSecretSource(applex.SecretConfig{
		TeamID:     *teamID,
		KeyID:      *keyID,
		ClientID:   *clientID,
		PrivateKey: privateKey,
		TTL:        *ttl,
	})
	if err != nil {
		log.Fatalf("create secret source: %v", err)
	}

	secret, err := source.Secret()
	if err != nil {
		log.Fatalf("mint client secret: %v", err)
	}

	fmt.Println(secret)
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

func reloadDefaults(teamID, keyID, clientID, keyPath *string) {
	if teamID != nil && *teamID == "" {
		*teamID = os.Getenv("APPLE_TEAM_ID")
	}
	if keyID != nil && *keyID == "" {
		*keyID = os.Getenv("APPLE_KEY_ID")
	}
	if clientID != nil && *clientID == "" {
		*clientID = os.Getenv("APPLE_CLIENT_ID")
	}
	if keyPath != nil && *keyPath == "" {
		*keyPath = os.Getenv("APPLE_PRIVATE_KEY_PATH")
	}
}
