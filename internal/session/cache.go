package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-scripts/profileharvest/internal/browser"
)

// ErrNoCookies is returned when asked to persist an empty token set.
var ErrNoCookies = errors.New("no cookies to save")

// Cache is the on-disk session token store: one JSON array of cookies in a
// single file. It performs no locking; one run owns the file at a time.
type Cache struct {
	path string
}

// NewCache returns a cache backed by path.
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path is the cache file location.
func (c *Cache) Path() string {
	return c.path
}

// Exists reports whether a cache file is present.
func (c *Cache) Exists() bool {
	_, err := os.Stat(c.path)
	return err == nil
}

// Load returns the cached cookies. A missing or empty file yields no cookies
// and no error.
func (c *Cache) Load() ([]browser.Cookie, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cookie cache: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var cookies []browser.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("decoding cookie cache %s: %w", c.path, err)
	}
	return cookies, nil
}

// Save overwrites the cache with cookies.
func (c *Cache) Save(cookies []browser.Cookie) error {
	if len(cookies) == 0 {
		return ErrNoCookies
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cookie directory: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing cookie cache: %w", err)
	}
	return nil
}

// Remove deletes the cache file. Removing a missing cache is not an error.
func (c *Cache) Remove() error {
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing cookie cache: %w", err)
	}
	return nil
}
