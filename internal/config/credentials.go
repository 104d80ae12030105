package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Keys under which the credentials live in the env file.
const (
	IdentityKey   = "LINKEDIN_EMAIL"
	PassphraseKey = "LINKEDIN_PASSWORD"
)

// ErrMissingCredentials means the identity or passphrase is not configured.
var ErrMissingCredentials = errors.New("LINKEDIN_EMAIL or LINKEDIN_PASSWORD not configured")

// Credentials are the secrets submitted on the interactive login form.
type Credentials struct {
	Identity   string
	Passphrase string
}

// Validate fails when either secret is blank.
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.Identity) == "" || strings.TrimSpace(c.Passphrase) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// LoadCredentials reads the secrets from envFile. Process environment
// variables of the same name take precedence over the file.
func LoadCredentials(envFile string) (Credentials, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return Credentials{}, fmt.Errorf("reading %s: %w", envFile, err)
	}
	v.AutomaticEnv()

	creds := Credentials{
		Identity:   strings.TrimSpace(v.GetString(IdentityKey)),
		Passphrase: strings.TrimSpace(v.GetString(PassphraseKey)),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// SaveCredentials writes the secrets into envFile, keeping any other keys the
// file already holds.
func SaveCredentials(envFile string, creds Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return fmt.Errorf("reading %s: %w", envFile, err)
	}

	v.Set(IdentityKey, strings.TrimSpace(creds.Identity))
	v.Set(PassphraseKey, strings.TrimSpace(creds.Passphrase))

	if dir := filepath.Dir(envFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := v.WriteConfigAs(envFile); err != nil {
		return fmt.Errorf("writing %s: %w", envFile, err)
	}
	return os.Chmod(envFile, 0o600)
}
