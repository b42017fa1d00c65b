// ABOUTME: Shared bootstrap for commands: configuration, logger and engine
// ABOUTME: --verbose and --quiet override TUTOR_LOG_LEVEL
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/harper/tutor/internal/config"
	"github.com/harper/tutor/internal/engine"
	"github.com/harper/tutor/internal/logging"
	"github.com/spf13/cobra"
)

// loadConfig reads .env and the environment
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger for a command
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := logging.ParseLevel(cfg.LogLevel)
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	_, noColor := os.LookupEnv("NO_COLOR")
	return logging.New(cmd.ErrOrStderr(), level, noColor)
}

// openEngine loads configuration and builds the tutor engine
func openEngine(cmd *cobra.Command) (*engine.Engine, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cmd, cfg)
	if !cfg.HasOpenAI() {
		logger.Warn("OPENAI_API_KEY not set - answers and embeddings are disabled")
	}

	tutor, err := engine.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return tutor, logger, nil
}

// wantJSON reports whether the global --format asks for JSON
func wantJSON() bool {
	return outputFormat == "json"
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
