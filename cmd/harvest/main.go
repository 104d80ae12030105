package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/profileharvest/internal/config"
	"github.com/go-scripts/profileharvest/internal/export"
	"github.com/go-scripts/profileharvest/internal/harvest"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Globals are the flags shared by every command.
type Globals struct {
	ConfigFile string `help:"Path to configuration file" default:"config.yaml" name:"config"`
	Debug      bool   `help:"Enable debug logging" default:"false"`
}

// CLI is the command tree.
type CLI struct {
	Globals

	Search SearchCmd `cmd:"" help:"Search profiles and export them"`
	Replay ReplayCmd `cmd:"" help:"Harvest from saved result pages"`
	Login  LoginCmd  `cmd:"" help:"Store the account credentials"`
	Forget ForgetCmd `cmd:"" help:"Discard the cached login session"`
}

// setup loads the configuration and builds the logger.
func (g *Globals) setup() (*config.Config, *log.Logger, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	logger := config.NewLogger(cfg.Logger, stderr)
	if g.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return cfg, logger, nil
}

// openSinks builds one sink per requested format. The returned func closes
// whatever needs closing.
func openSinks(cfg *config.Config, formats []string, logger *log.Logger) ([]export.Sink, func(), error) {
	var (
		sinks   []export.Sink
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("closing export", "err", err)
			}
		}
	}

	for _, format := range formats {
		switch strings.ToLower(strings.TrimSpace(format)) {
		case "xlsx":
			sinks = append(sinks, export.NewWorkbook(cfg.Paths.ExportsDir, cfg.Site.Name, logger))
		case "json":
			sinks = append(sinks, export.NewJSONFile(cfg.Paths.ExportsDir, cfg.Site.Name, logger))
		case "sqlite":
			db, err := export.OpenSQLite(cfg.Paths.Database, logger)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sinks = append(sinks, db)
			closers = append(closers, db.Close)
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown export format %q (want xlsx, json or sqlite)", format)
		}
	}
	return sinks, closeAll, nil
}

// exportAll hands records to every sink. A failing sink does not stop the
// others.
func exportAll(sinks []export.Sink, records []harvest.Record, label string, logger *log.Logger) ([]string, error) {
	if len(records) == 0 {
		logger.Warn("nothing to export", "label", label)
		return nil, nil
	}
	var (
		outputs []string
		errs    []error
	)
	for _, sink := range sinks {
		path, err := sink.Export(records, label)
		if err != nil {
			logger.Error("error during export", "err", err)
			errs = append(errs, err)
			continue
		}
		outputs = append(outputs, path)
	}
	return outputs, errors.Join(errs...)
}

func main() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("harvest"),
		kong.Description("Collect profile summaries from people search results."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
