package internal

import (
	"encoding/json"
	"fmt"

	"github.com/recruitlink/billing/internal/auth"
	"github.com/recruitlink/billing/internal/config"
)

// GenerateNewAPIKey generates an admin API key and prints the config entry for it
func GenerateNewAPIKey() error {
	rawKey, err := auth.GenerateAPIKey()
	if err != nil {
		return err
	}
	hashedKey := auth.HashAPIKey(rawKey)

	details := config.APIKeyDetails{
		Name:     envOrDefault("KEY_NAME", "admin"),
		IsActive: true,
	}

	jsonBytes, err := json.Marshal(map[string]config.APIKeyDetails{
		hashedKey: details,
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nNew API Key Generated:\n")
	fmt.Printf("Raw Key (hand this to the calling service): %s\n", rawKey)
	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("Add this to your config.yaml under auth.api_key.keys:\n")
	fmt.Printf("%s:\n", hashedKey)
	fmt.Printf("  name: %s\n", details.Name)
	fmt.Printf("  is_active: %v\n", details.IsActive)
	fmt.Printf("\nOr set this environment variable:\n")
	fmt.Printf("BILLING_AUTH_API_KEY_KEYS='%s'\n", string(jsonBytes))

	return nil
}
