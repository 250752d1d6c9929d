package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// TokenConfig holds the bcrypt settings and stored hash of the API acknowledgement token.
type TokenConfig struct {
	BcryptCost int
	Pepper     string // optional global secret for additional security
	Hash       string // bcrypt hash of the token; empty disables token-protected routes
}

// NewTokenConfig creates a token configuration from environment variables.
// It reads BCRYPT_COST (default: 12), API_TOKEN_PEPPER and API_TOKEN_HASH.
func NewTokenConfig() (*TokenConfig, error) {
	costStr := os.Getenv("BCRYPT_COST")
	if costStr == "" {
		costStr = "12" // default
	}

	cost, err := strconv.Atoi(costStr)
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %v", err)
	}

	config := &TokenConfig{
		BcryptCost: cost,
		Pepper:     os.Getenv("API_TOKEN_PEPPER"),
		Hash:       os.Getenv("API_TOKEN_HASH"),
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *TokenConfig) normalize() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	return nil
}

// Enabled reports whether a token hash is configured.
func (c *TokenConfig) Enabled() bool {
	return c != nil && c.Hash != ""
}

// HashToken hashes a token using bcrypt (with optional pepper).
func (c *TokenConfig) HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token+c.Pepper), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken checks a presented token against the configured hash.
func (c *TokenConfig) VerifyToken(token string) bool {
	if !c.Enabled() || token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.Hash), []byte(token+c.Pepper)) == nil
}
