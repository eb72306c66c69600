package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/chime/internal/config"
)

// setupLog configures the default logger from the environment. Logs go to
// stderr unless CHIME_LOG_FILE is set.
func setupLog() (func() error, error) {
	e, err := config.ParseEnv()
	if err != nil {
		return nil, err
	}

	level := log.InfoLevel
	if e.Debug {
		level = log.DebugLevel
	}

	if e.LogFile == "" {
		log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{Level: level}))
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(e.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetDefault(log.NewWithOptions(f, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	}))
	return f.Close, nil
}
