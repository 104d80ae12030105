package config

import (
	"io"

	"github.com/charmbracelet/log"
)

// NewLogger builds the run's logger. An unknown level falls back to info.
func NewLogger(cfg LoggerConfig, w io.Writer) *log.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: cfg.ReportTimestamp,
		Prefix:          "harvest",
	})
}
