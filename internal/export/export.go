// Package export persists harvested records. Every sink appends: records
// already stored under the same label are kept and the new ones follow them.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-scripts/profileharvest/internal/harvest"
)

// ErrNoRecords is returned when asked to export an empty record list.
var ErrNoRecords = errors.New("no records to export")

// Sink stores records under a label and reports where they went.
type Sink interface {
	Export(records []harvest.Record, label string) (string, error)
}

// FileStem is the base file name for label, e.g. linkedin_profiles_go_developer.
func FileStem(site, label string) string {
	return fmt.Sprintf("%s_profiles_%s", site, sanitizeFilename(strings.TrimSpace(label)))
}

// sanitizeFilename replaces characters that are unsafe in file names.
func sanitizeFilename(name string) string {
	unsafe := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|", " "}
	for _, char := range unsafe {
		name = strings.ReplaceAll(name, char, "_")
	}
	return name
}

// timestamped inserts _YYYYMMDD_HHMMSS before the extension of path.
func timestamped(path string, now time.Time) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + now.Format("20060102_150405") + ext
}

// ensureDir creates dir, returning fallback instead when dir is not usable.
func ensureDir(dir, fallback string) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		return dir, nil
	}
	if fallback == "" {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	if ferr := os.MkdirAll(fallback, 0o755); ferr != nil {
		return "", fmt.Errorf("creating output directory: %w", errors.Join(err, ferr))
	}
	return fallback, nil
}

// DefaultFallbackDir is where exports go when the configured directory
// cannot be written.
func DefaultFallbackDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Documents", "LinkedInExports")
}
