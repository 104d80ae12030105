package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/go-scripts/profileharvest/internal/browser"
	"github.com/go-scripts/profileharvest/internal/harvest"
)

// ReplayCmd harvests pages saved with search --dump-html, without a browser.
type ReplayCmd struct {
	Files  []string `arg:"" help:"Saved result pages, in page order"`
	Count  int      `help:"Number of profiles to collect" default:"100" short:"n"`
	Label  string   `help:"Label the export is stored under" default:"replay"`
	Format []string `help:"Export formats: xlsx, json, sqlite" default:"json" short:"f"`
	Dedupe bool     `help:"Skip profiles whose link was already collected in this run"`
}

func (c *ReplayCmd) Run(g *Globals) error {
	if err := harvest.Validate(c.Label, c.Count); err != nil {
		return err
	}
	cfg, logger, err := g.setup()
	if err != nil {
		return err
	}
	if c.Dedupe {
		cfg.Harvest.DedupeByLink = true
	}
	sinks, closeSinks, err := openSinks(cfg, c.Format, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return collect(ctx, run{
		page:    harvest.NewSnapshotPage(c.Files, harvest.LayoutFromConfig(cfg), logger),
		cfg:     cfg,
		pacer:   browser.Instant(),
		logger:  logger,
		sinks:   sinks,
		term:    c.Label,
		quota:   c.Count,
		session: "offline",
		start:   time.Now(),
	})
}
