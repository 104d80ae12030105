package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/go-scripts/profileharvest/internal/browser"
	"github.com/go-scripts/profileharvest/internal/config"
	"github.com/go-scripts/profileharvest/internal/export"
	"github.com/go-scripts/profileharvest/internal/harvest"
	"github.com/go-scripts/profileharvest/internal/progress"
	"github.com/go-scripts/profileharvest/internal/session"
)

// SearchCmd signs in, harvests search results and exports them.
type SearchCmd struct {
	Term     string   `arg:"" help:"Keywords to search for"`
	Count    int      `arg:"" help:"Number of profiles to collect"`
	Format   []string `help:"Export formats: xlsx, json, sqlite" default:"xlsx" short:"f"`
	Headless bool     `help:"Run Chrome without a window"`
	DumpHTML string   `help:"Save every visited results page into this directory" name:"dump-html" type:"path"`
	Dedupe   bool     `help:"Skip profiles whose link was already collected in this run"`
	Fresh    bool     `help:"Ignore the cached session and log in again"`
}

func (c *SearchCmd) Run(g *Globals) error {
	if err := harvest.Validate(c.Term, c.Count); err != nil {
		return err
	}
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	if c.Headless {
		cfg.Browser.Headless = true
	}
	if c.Dedupe {
		cfg.Harvest.DedupeByLink = true
	}

	creds, err := config.LoadCredentials(cfg.Paths.EnvFile)
	if err != nil {
		return fmt.Errorf("%w (run `harvest login` first)", err)
	}
	sinks, closeSinks, err := openSinks(cfg, c.Format, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := browser.New(browser.Options{
		Headless:   cfg.Browser.Headless,
		ExecPath:   cfg.Browser.ExecPath,
		UserAgent:  cfg.Browser.UserAgent,
		Width:      cfg.Browser.Width,
		Height:     cfg.Browser.Height,
		NavTimeout: cfg.Browser.NavTimeout,
	})
	if err != nil {
		return err
	}
	defer b.Close()
	tab := b.Tab()

	pacer := pacerFromConfig(cfg)
	opts := []session.Option{session.WithPacer(pacer), session.WithLogger(logger)}
	if c.Fresh {
		opts = append(opts, session.WithoutRestore())
	}
	auth, err := session.NewAuthenticator(tab, creds, session.NewCache(cfg.CookieFile()), session.SettingsFromConfig(cfg), opts...)
	if err != nil {
		return err
	}

	start := time.Now()
	outcome := auth.Authenticate(ctx)
	if !outcome.Authenticated {
		fmt.Fprintln(stdout, progress.Summary{
			Term:    c.Term,
			Session: outcome.Method.String(),
			Quota:   c.Count,
			Stop:    "not authenticated",
			Elapsed: time.Since(start),
			Err:     outcome.Reason,
		}.Render())
		return fmt.Errorf("login failed: %w", outcome.Reason)
	}

	live := harvest.LiveConfigFromConfig(cfg)
	live.Pacer = pacer
	live.Logger = logger
	live.DumpDir = c.DumpHTML
	page := harvest.NewLivePage(tab, harvest.LayoutFromConfig(cfg), live)

	return collect(ctx, run{
		page:    page,
		cfg:     cfg,
		pacer:   pacer,
		logger:  logger,
		sinks:   sinks,
		term:    c.Term,
		quota:   c.Count,
		session: outcome.Method.String(),
		start:   start,
	})
}

func pacerFromConfig(cfg *config.Config) *browser.Pacer {
	return &browser.Pacer{
		Scale: cfg.Harvest.Settle.Scale,
		Min:   cfg.Harvest.Settle.Min,
		Max:   cfg.Harvest.Settle.Max,
	}
}

// run is one harvest-and-export pass.
type run struct {
	page    harvest.ResultPage
	cfg     *config.Config
	pacer   *browser.Pacer
	logger  *log.Logger
	sinks   []export.Sink
	term    string
	quota   int
	session string
	start   time.Time
}

// collect harvests, exports what was found even after a failure, and prints
// the summary.
func collect(ctx context.Context, r run) error {
	tracker := progress.New(stderr, r.quota)
	tracker.Start(r.term)

	h := harvest.New(r.page, harvest.Options{
		PageSize:     r.cfg.Harvest.PageSize,
		DedupeByLink: r.cfg.Harvest.DedupeByLink,
		BetweenPages: r.cfg.Harvest.Delays.BetweenPages,
		Pacer:        r.pacer,
		Observer:     tracker,
		Logger:       r.logger,
	})
	res, herr := h.Harvest(ctx, r.term, r.quota)
	if res == nil {
		tracker.Stop()
		return herr
	}

	outputs, xerr := exportAll(r.sinks, res.Records, r.term, r.logger)
	err := errors.Join(herr, xerr)

	fmt.Fprintln(stdout, progress.Summary{
		Term:       r.term,
		Session:    r.session,
		Quota:      r.quota,
		Collected:  len(res.Records),
		Pages:      res.Pages,
		Rejected:   res.Rejected,
		Skipped:    res.Skipped,
		Duplicates: res.Duplicates,
		Stop:       res.Stop.String(),
		Elapsed:    time.Since(r.start),
		Outputs:    outputs,
		Err:        err,
	}.Render())
	return err
}
