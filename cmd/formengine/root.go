package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-formengine/internal/config"
)

const (
	checkMark = "✓"
	crossMark = "✗"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgFile string
	envFile string

	cfg    *config.Config
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "formengine",
		Short: "Reactive form rule engine",
		Long: `formengine evaluates form schemas: conditional visibility, required and
disabled flags, validation and remote option lookups.

Examples:
  formengine validate schemas/*.json
  formengine graph schemas/registration.json
  formengine fill schemas/registration.json
  formengine serve --config formengine.yaml
  formengine import-openapi api.yaml createAccount`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "formengine.yaml", "config file path")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newValidateCmd(a),
		newGraphCmd(a),
		newFillCmd(a),
		newServeCmd(a),
		newImportOpenAPICmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.LoadWithFallback(a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Logging, cmd.ErrOrStderr())
	return nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// writerOrStdout lets commands write to a file when a path is given.
func writerOrStdout(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
