package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite"

	"github.com/go-scripts/profileharvest/internal/harvest"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	label        TEXT NOT NULL,
	name         TEXT NOT NULL,
	title        TEXT NOT NULL,
	location     TEXT NOT NULL,
	summary      TEXT NOT NULL,
	connections  TEXT NOT NULL,
	profile_link TEXT NOT NULL,
	harvested_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_profiles_label ON profiles(label);
`

// SQLite stores records in a profiles table keyed by label. Rows are only
// ever inserted, so repeated runs append.
type SQLite struct {
	db     *sql.DB
	path   string
	logger *log.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating when needed) the database at path.
func OpenSQLite(path string, logger *log.Logger) (*SQLite, error) {
	if logger == nil {
		logger = log.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)",
		path,
	)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, path: path, logger: logger.With("component", "sqlite"), now: time.Now}, nil
}

func (s *SQLite) Export(records []harvest.Record, label string) (string, error) {
	return s.ExportContext(context.Background(), records, label)
}

// ExportContext inserts records under label in one transaction.
func (s *SQLite) ExportContext(ctx context.Context, records []harvest.Record, label string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO profiles
		(label, name, title, location, summary, connections, profile_link, harvested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	at := s.now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, label, r.Name, r.Title, r.Location, r.Summary, r.Connections, r.ProfileLink, at); err != nil {
			return "", fmt.Errorf("insert %q: %w", r.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("profiles exported", "count", len(records), "path", s.path, "label", label)
	return s.path, nil
}

// Records returns every record stored under label in insertion order.
func (s *SQLite) Records(ctx context.Context, label string) ([]harvest.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, title, location, summary, connections, profile_link
		FROM profiles WHERE label = ? ORDER BY id`, label)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var records []harvest.Record
	for rows.Next() {
		var r harvest.Record
		if err := rows.Scan(&r.Name, &r.Title, &r.Location, &r.Summary, &r.Connections, &r.ProfileLink); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
