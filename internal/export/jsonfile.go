package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/profileharvest/internal/harvest"
)

// JSONFile writes records as a JSON array, one file per label.
type JSONFile struct {
	Dir    string
	Site   string
	Logger *log.Logger
}

// NewJSONFile returns a JSONFile writing into dir.
func NewJSONFile(dir, site string, logger *log.Logger) *JSONFile {
	if logger == nil {
		logger = log.Default()
	}
	return &JSONFile{Dir: dir, Site: site, Logger: logger.With("component", "json")}
}

// Path is the file used for label.
func (j *JSONFile) Path(label string) string {
	return filepath.Join(j.Dir, FileStem(j.Site, label)+".json")
}

func (j *JSONFile) Export(records []harvest.Record, label string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := j.Path(label)
	all, err := ReadJSONFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		j.Logger.Warn("error reading existing export, overwriting", "path", path, "err", err)
		all = nil
	}
	all = append(all, records...)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(all); err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}
	j.Logger.Info("profiles exported", "count", len(records), "path", path, "total", len(all))
	return path, nil
}

// ReadJSONFile loads a file written by JSONFile.
func ReadJSONFile(path string) ([]harvest.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []harvest.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return records, nil
}
