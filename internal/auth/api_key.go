package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/recruitlink/billing/internal/config"
)

// HashAPIKey creates a SHA-256 hash of the API key
func HashAPIKey(key string) string {
	hasher := sha256.New()
	hasher.Write([]byte(key))
	return hex.EncodeToString(hasher.Sum(nil))
}

// GenerateAPIKey generates a new API key
// The key is returned in its raw form, it should be hashed before storing in config
func GenerateAPIKey() (string, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// ValidateAPIKey validates an API key against the configuration.
// Returns the key's name when it is known and active.
func ValidateAPIKey(cfg *config.Configuration, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	hashed := HashAPIKey(key)
	for digest, details := range cfg.Auth.APIKey.Keys {
		if subtle.ConstantTimeCompare([]byte(digest), []byte(hashed)) == 1 {
			return details.Name, details.IsActive
		}
	}
	return "", false
}

// Enabled reports whether any API key is configured
func Enabled(cfg *config.Configuration) bool {
	return len(cfg.Auth.APIKey.Keys) > 0
}
