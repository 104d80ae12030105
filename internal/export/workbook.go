package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/xuri/excelize/v2"

	"github.com/go-scripts/profileharvest/internal/harvest"
)

const sheet = "Sheet1"

// Workbook writes records to one spreadsheet per label.
type Workbook struct {
	Dir         string
	Site        string
	FallbackDir string
	Logger      *log.Logger

	now func() time.Time
}

// NewWorkbook returns a Workbook writing into dir.
func NewWorkbook(dir, site string, logger *log.Logger) *Workbook {
	if logger == nil {
		logger = log.Default()
	}
	return &Workbook{
		Dir:         dir,
		Site:        site,
		FallbackDir: DefaultFallbackDir(),
		Logger:      logger.With("component", "xlsx"),
		now:         time.Now,
	}
}

// Path is the spreadsheet used for label.
func (w *Workbook) Path(label string) string {
	return filepath.Join(w.Dir, FileStem(w.Site, label)+".xlsx")
}

// Export appends records to the label's spreadsheet. When the file cannot be
// overwritten the whole sheet is saved under a timestamped name instead.
func (w *Workbook) Export(records []harvest.Record, label string) (string, error) {
	if len(records) == 0 {
		return "", ErrNoRecords
	}
	dir, err := ensureDir(w.Dir, w.FallbackDir)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileStem(w.Site, label)+".xlsx")

	rows := w.existing(path)
	for _, r := range records {
		rows = append(rows, r.Values())
	}

	f, err := build(rows)
	if err != nil {
		return "", err
	}
	defer f.Close()

	err = f.SaveAs(path)
	if errors.Is(err, fs.ErrPermission) {
		alt := timestamped(path, w.now())
		w.Logger.Warn("no permission to update spreadsheet, saving under a new name", "path", path, "new", alt)
		path, err = alt, f.SaveAs(alt)
	}
	if err != nil {
		return "", fmt.Errorf("saving %s: %w", path, err)
	}
	w.Logger.Info("profiles exported", "count", len(records), "path", path, "total", len(rows))
	return path, nil
}

// existing returns the data rows already in path. An unreadable file is
// logged and treated as empty.
func (w *Workbook) existing(path string) [][]string {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		w.Logger.Warn("error reading existing spreadsheet", "path", path, "err", err)
		return nil
	}
	defer f.Close()

	rows, err := dataRows(f)
	if err != nil {
		w.Logger.Warn("error reading existing spreadsheet", "path", path, "err", err)
		return nil
	}
	return rows
}

// ReadWorkbook loads the records stored in a spreadsheet written by Workbook.
func ReadWorkbook(path string) ([]harvest.Record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := dataRows(f)
	if err != nil {
		return nil, err
	}
	records := make([]harvest.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, harvest.RecordFromValues(row))
	}
	return records, nil
}

// dataRows reads the first sheet, whatever it is named, minus the header row.
func dataRows(f *excelize.File) ([][]string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) > 0 && rows[0][0] == harvest.Columns[0] {
		rows = rows[1:]
	}
	return rows, nil
}

func build(rows [][]string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := writeRow(f, 1, harvest.Columns); err != nil {
		f.Close()
		return nil, err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRow(f *excelize.File, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return f.SetSheetRow(sheet, cell, &row)
}
