package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://www.linkedin.com", cfg.Site.BaseURL)
	assert.Equal(t, []string{"feed", "mynetwork", "messaging", "notifications"}, cfg.Site.AuthenticatedFragments)
	assert.Equal(t, 10, cfg.Harvest.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 5*time.Second, cfg.Harvest.Delays.Search)
	assert.Len(t, cfg.Layout.NextPage, 2)
	assert.Equal(t, filepath.Join("cookies", "linkedin_cookies.json"), cfg.CookieFile())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
site:
  name: example
browser:
  headless: true
  wait_timeout: 3s
harvest:
  settle:
    scale: 0.5
  delays:
    search: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("HARVEST_HARVEST_PAGE_SIZE", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "example", cfg.Site.Name)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 3*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 0.5, cfg.Harvest.Settle.Scale)
	assert.Equal(t, time.Second, cfg.Harvest.Delays.Search)
	assert.Equal(t, 7, cfg.Harvest.PageSize)
	assert.Equal(t, filepath.Join("cookies", "example_cookies.json"), cfg.CookieFile())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("harvest:\n  page_size: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "page_size")
}

func TestCredentials(t *testing.T) {
	t.Setenv(IdentityKey, "")
	t.Setenv(PassphraseKey, "")

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCredentials(filepath.Join(t.TempDir(), ".env"))
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("partial file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("LINKEDIN_EMAIL=ada@example.com\n"), 0o600))
		_, err := LoadCredentials(path)
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secrets", ".env")
		require.NoError(t, SaveCredentials(path, Credentials{Identity: " ada@example.com ", Passphrase: "s3cret"}))

		creds, err := LoadCredentials(path)
		require.NoError(t, err)
		assert.Equal(t, Credentials{Identity: "ada@example.com", Passphrase: "s3cret"}, creds)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("environment wins", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("LINKEDIN_EMAIL=file@example.com\nLINKEDIN_PASSWORD=file\n"), 0o600))
		t.Setenv(IdentityKey, "env@example.com")

		creds, err := LoadCredentials(path)
		require.NoError(t, err)
		assert.Equal(t, "env@example.com", creds.Identity)
		assert.Equal(t, "file", creds.Passphrase)
	})

	t.Run("save refuses blanks", func(t *testing.T) {
		err := SaveCredentials(filepath.Join(t.TempDir(), ".env"), Credentials{Identity: "ada@example.com"})
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: "warn"}, &buf)
	assert.Equal(t, log.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("shown", "page", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	assert.Equal(t, log.InfoLevel, NewLogger(LoggerConfig{Level: "loud"}, &buf).GetLevel())
}
