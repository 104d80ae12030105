package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/profileharvest/internal/browser"
	"github.com/go-scripts/profileharvest/internal/config"
)

// ResultPage is a paginated result view. Rows are addressed from 1.
type ResultPage interface {
	// Load opens the first page of results for term.
	Load(ctx context.Context, term string) error
	// Prepare readies the current page for extraction.
	Prepare(ctx context.Context) error
	// Field returns the cleaned value of kind in row, or Unavailable. An
	// error means the row could not be read at all.
	Field(ctx context.Context, row int, kind FieldKind) (string, error)
	// Advance moves to the next page. False means pagination is exhausted
	// or the next-page control could not be used.
	Advance(ctx context.Context) bool
}

// Driver is the slice of a browser tab a LivePage needs.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitPresent(ctx context.Context, selector string, timeout time.Duration) error
	ScrollTo(ctx context.Context, fraction float64) error
	ScrollIntoView(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	Enabled(ctx context.Context, selector string) (bool, error)
	Query(ctx context.Context, expression string, res any) error
	HTML(ctx context.Context) (string, error)
}

// LiveConfig configures a LivePage.
type LiveConfig struct {
	BaseURL      string
	SearchPath   string
	WaitTimeout  time.Duration
	ProbeTimeout time.Duration
	Delays       config.DelayConfig

	Pacer  *browser.Pacer
	Logger *log.Logger
	// DumpDir, when set, receives the HTML of every prepared page.
	DumpDir string
}

// LiveConfigFromConfig maps the run configuration onto a LiveConfig.
func LiveConfigFromConfig(cfg *config.Config) LiveConfig {
	return LiveConfig{
		BaseURL:      cfg.Site.BaseURL,
		SearchPath:   cfg.Site.SearchPath,
		WaitTimeout:  cfg.Browser.WaitTimeout,
		ProbeTimeout: cfg.Browser.ProbeTimeout,
		Delays:       cfg.Harvest.Delays,
	}
}

// LivePage drives the search results of the site in a real browser tab.
type LivePage struct {
	driver Driver
	layout Layout
	cfg    LiveConfig
	pacer  *browser.Pacer
	logger *log.Logger
	page   int
}

// NewLivePage returns a LivePage for driver.
func NewLivePage(driver Driver, layout Layout, cfg LiveConfig) *LivePage {
	p := &LivePage{
		driver: driver,
		layout: layout,
		cfg:    cfg,
		pacer:  cfg.Pacer,
		logger: cfg.Logger,
	}
	if p.pacer == nil {
		p.pacer = browser.NewPacer()
	}
	if p.logger == nil {
		p.logger = log.Default()
	}
	p.logger = p.logger.With("component", "page")
	return p
}

func (p *LivePage) Load(ctx context.Context, term string) error {
	u := SearchURL(p.cfg.BaseURL, p.cfg.SearchPath, term)
	p.logger.Info("opening search results", "term", term)
	if err := p.driver.Navigate(ctx, u); err != nil {
		return fmt.Errorf("opening search results: %w", err)
	}
	if err := p.pacer.Settle(ctx, p.cfg.Delays.Search); err != nil {
		return err
	}
	if err := p.driver.WaitPresent(ctx, p.layout.ResultsContainer, p.cfg.WaitTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.logger.Warn("search results container not found, continuing", "err", err)
	}
	p.page = 1
	return nil
}

func (p *LivePage) Prepare(ctx context.Context) error {
	steps := []struct {
		fraction float64
		settle   time.Duration
	}{
		{0.5, p.cfg.Delays.HalfScroll},
		{1, p.cfg.Delays.FullScroll},
	}
	for _, s := range steps {
		if err := p.driver.ScrollTo(ctx, s.fraction); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Warn("scroll failed", "to", s.fraction, "err", err)
		}
		if err := p.pacer.Settle(ctx, s.settle); err != nil {
			return err
		}
	}
	if err := p.pacer.Settle(ctx, p.cfg.Delays.Rows); err != nil {
		return err
	}
	p.dump(ctx)
	return nil
}

type fieldResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

const fieldScript = `(() => {
	const row = document.querySelectorAll(%s)[%d];
	if (!row) return {found: false, value: ""};
	const el = row.querySelector(%s);
	if (!el) return {found: false, value: ""};
	return {found: true, value: %s};
})()`

// el.href is already resolved against the document URL; the raw attribute
// may be relative.
const (
	linkValue = `el.href || el.getAttribute("href") || ""`
	textValue = `el.innerText || el.textContent || ""`
)

func (p *LivePage) Field(ctx context.Context, row int, kind FieldKind) (string, error) {
	sel := p.layout.Selector(kind)
	if sel == "" || row < 1 {
		return Unavailable, nil
	}
	rowSel, err := json.Marshal(p.layout.Row)
	if err != nil {
		return "", err
	}
	fieldSel, err := json.Marshal(sel)
	if err != nil {
		return "", err
	}

	value := textValue
	if kind == FieldLink {
		value = linkValue
	}

	var res fieldResult
	expr := fmt.Sprintf(fieldScript, rowSel, row-1, fieldSel, value)
	if err := p.driver.Query(ctx, expr, &res); err != nil {
		return "", fmt.Errorf("reading %s of row %d: %w", kind, row, err)
	}
	if !res.Found {
		return Unavailable, nil
	}
	return p.layout.Clean(kind, res.Value), nil
}

func (p *LivePage) Advance(ctx context.Context) bool {
	if err := p.driver.ScrollTo(ctx, 1); err != nil {
		p.logger.Warn("scroll to bottom failed", "err", err)
	}
	if err := p.pacer.Settle(ctx, p.cfg.Delays.BottomScroll); err != nil {
		return false
	}

	for _, sel := range p.layout.NextPage {
		if err := p.driver.WaitPresent(ctx, sel, p.cfg.ProbeTimeout); err != nil {
			if errors.Is(err, browser.ErrTimeout) {
				p.logger.Debug("next control not present", "selector", sel)
				continue
			}
			p.logger.Warn("probing next control failed", "selector", sel, "err", err)
			return false
		}
		enabled, err := p.driver.Enabled(ctx, sel)
		if err != nil {
			p.logger.Warn("probing next control failed", "selector", sel, "err", err)
			return false
		}
		if !enabled {
			p.logger.Debug("next control disabled", "selector", sel)
			continue
		}

		if err := p.driver.ScrollIntoView(ctx, sel); err != nil {
			p.logger.Warn("could not scroll to next control", "selector", sel, "err", err)
			return false
		}
		if err := p.pacer.Settle(ctx, p.cfg.Delays.ScrollIntoView); err != nil {
			return false
		}
		if err := p.driver.Click(ctx, sel); err != nil {
			p.logger.Warn("clicking next control failed", "selector", sel, "err", err)
			return false
		}
		if err := p.pacer.Settle(ctx, p.cfg.Delays.AfterNext); err != nil {
			return false
		}
		p.page++
		p.logger.Debug("moved to next page", "page", p.page)
		return true
	}

	p.logger.Info("no usable next page control, pagination exhausted")
	return false
}

// dump writes the current page to DumpDir. Failures are logged only.
func (p *LivePage) dump(ctx context.Context) {
	if p.cfg.DumpDir == "" {
		return
	}
	html, err := p.driver.HTML(ctx)
	if err != nil {
		p.logger.Warn("could not capture page html", "err", err)
		return
	}
	if err := os.MkdirAll(p.cfg.DumpDir, 0o755); err != nil {
		p.logger.Warn("could not create dump directory", "dir", p.cfg.DumpDir, "err", err)
		return
	}
	path := filepath.Join(p.cfg.DumpDir, SnapshotName(p.page))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		p.logger.Warn("could not write page html", "path", path, "err", err)
		return
	}
	p.logger.Debug("page html saved", "path", path)
}

// SnapshotName is the file name used for the dump of page n.
func SnapshotName(n int) string {
	return fmt.Sprintf("page-%03d.html", n)
}
