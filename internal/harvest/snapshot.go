package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

// SnapshotPage replays saved result pages from disk, one file per page, in
// the order given.
type SnapshotPage struct {
	files  []string
	layout Layout
	logger *log.Logger

	index int
	doc   *goquery.Document
}

// NewSnapshotPage returns a SnapshotPage over files.
func NewSnapshotPage(files []string, layout Layout, logger *log.Logger) *SnapshotPage {
	if logger == nil {
		logger = log.Default()
	}
	return &SnapshotPage{
		files:  files,
		layout: layout,
		logger: logger.With("component", "snapshot"),
	}
}

func (s *SnapshotPage) Load(ctx context.Context, term string) error {
	if len(s.files) == 0 {
		return errors.New("no snapshot files")
	}
	s.logger.Info("replaying snapshots", "label", term, "pages", len(s.files))
	return s.open(0)
}

func (s *SnapshotPage) Prepare(ctx context.Context) error {
	if s.doc == nil {
		return errors.New("no snapshot loaded")
	}
	return ctx.Err()
}

func (s *SnapshotPage) Field(ctx context.Context, row int, kind FieldKind) (string, error) {
	if s.doc == nil {
		return "", errors.New("no snapshot loaded")
	}
	sel := s.layout.Selector(kind)
	if sel == "" || row < 1 {
		return Unavailable, nil
	}
	el := s.doc.Find(s.layout.Row).Eq(row - 1).Find(sel).First()
	if el.Length() == 0 {
		return Unavailable, nil
	}
	if kind == FieldLink {
		href, _ := el.Attr("href")
		return s.layout.Clean(kind, href), nil
	}
	return s.layout.Clean(kind, strings.Join(strings.Fields(el.Text()), " ")), nil
}

// Advance moves to the next file only when the current page shows an
// enabled next-page control.
func (s *SnapshotPage) Advance(ctx context.Context) bool {
	if s.doc == nil || ctx.Err() != nil {
		return false
	}
	if !s.hasNext() {
		s.logger.Info("no usable next page control, pagination exhausted")
		return false
	}
	if s.index+1 >= len(s.files) {
		s.logger.Info("next page control present but no further snapshot", "file", s.files[s.index])
		return false
	}
	if err := s.open(s.index + 1); err != nil {
		s.logger.Warn("could not open next snapshot", "err", err)
		return false
	}
	return true
}

func (s *SnapshotPage) hasNext() bool {
	for _, sel := range s.layout.NextPage {
		next := s.doc.Find(sel).First()
		if next.Length() == 0 {
			continue
		}
		if _, disabled := next.Attr("disabled"); disabled {
			continue
		}
		if v, _ := next.Attr("aria-disabled"); v == "true" {
			continue
		}
		return true
	}
	return false
}

func (s *SnapshotPage) open(i int) error {
	f, err := os.Open(s.files[i])
	if err != nil {
		return err
	}
	defer f.Close()

	root, err := html.Parse(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", s.files[i], err)
	}
	s.doc = goquery.NewDocumentFromNode(root)
	s.index = i
	s.logger.Debug("snapshot loaded", "file", s.files[i], "rows", s.doc.Find(s.layout.Row).Length())
	return nil
}
