package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/jonathan/job-change-tracker/internal/fetch"
)

const (
	// KeyringService groups the scraper's secrets in the OS keychain.
	KeyringService = "jobchange"
	// usernameAccount holds the LinkedIn username; the password is stored under the username.
	usernameAccount = "linkedin:username"

	EnvUsername = "LINKEDIN_USERNAME"
	EnvPassword = "LINKEDIN_PASSWORD"
)

// LoadCredentials returns the LinkedIn login from the environment, falling back to the OS
// keyring. No stored credentials yields zero credentials, which skips the login step.
func LoadCredentials() (fetch.Credentials, error) {
	creds := fetch.Credentials{
		Username: strings.TrimSpace(os.Getenv(EnvUsername)),
		Password: os.Getenv(EnvPassword),
	}
	if creds.Username != "" && creds.Password != "" {
		return creds, nil
	}

	if creds.Username == "" {
		user, err := keyring.Get(KeyringService, usernameAccount)
		if err != nil {
			return fetch.Credentials{}, keyringMiss(err)
		}
		creds.Username = user
	}

	pw, err := keyring.Get(KeyringService, creds.Username)
	if err != nil {
		return fetch.Credentials{}, keyringMiss(err)
	}
	creds.Password = pw
	return creds, nil
}

// keyringMiss treats a missing entry or an unavailable keyring as "no credentials".
func keyringMiss(err error) error {
	if !errors.Is(err, keyring.ErrNotFound) {
		log.Printf("[CONFIG] keyring unavailable, continuing without credentials: %v", err)
	}
	return nil
}

// SetCredentials stores the LinkedIn login in the OS keyring.
func SetCredentials(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	if err := keyring.Set(KeyringService, usernameAccount, username); err != nil {
		return fmt.Errorf("failed to store username: %w", err)
	}
	if err := keyring.Set(KeyringService, username, password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	return nil
}

// DeleteCredentials removes the stored LinkedIn login.
func DeleteCredentials() error {
	user, err := keyring.Get(KeyringService, usernameAccount)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to read username: %w", err)
	}
	if err := keyring.Delete(KeyringService, user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password: %w", err)
	}
	if err := keyring.Delete(KeyringService, usernameAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete username: %w", err)
	}
	return nil
}
