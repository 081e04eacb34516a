// Package cli implements the planctl administration tool: schedule
// recalculation, edit validation, date pool inspection, and schema
// migrations, run directly against the configured database.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	appschedule "github.com/civicplan/planschedule/internal/application/schedule"
	"github.com/civicplan/planschedule/internal/bootstrap"
	"github.com/civicplan/planschedule/internal/config"
	"github.com/civicplan/planschedule/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ServiceFactory yields a ready scheduling service plus a cleanup function.
// Commands call it lazily so flag errors never touch the database.
type ServiceFactory func(ctx context.Context) (appschedule.Service, func(), error)

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	JSONOutput bool
}

// NewRootCommand builds the planctl command tree with production wiring.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	return newRootCommand(opts, defaultFactory(opts), os.Stdout)
}

func newRootCommand(opts *RootOptions, factory ServiceFactory, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "planctl",
		Short:         "Administration tool for the planschedule deadline engine",
		Long:          "planctl runs scheduling operations directly against the configured\ndatabase: project recalculation, edit validation, date pool inspection,\nand schema migrations.",
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: search standard locations)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.JSONOutput, "json", false, "emit results as JSON")

	cmd.AddCommand(
		newRecalculateCmd(opts, factory, out),
		newPreviewCmd(opts, factory, out),
		newValidateCmd(opts, factory, out),
		newExplainCmd(opts, factory, out),
		newDateTypesCmd(opts, factory, out),
		newMigrateCmd(opts, out),
	)
	return cmd
}

// Execute runs the command tree and reports failures on stderr.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration for CLI use: the explicit --config path
// when given, the environment otherwise.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.Load(opts.ConfigPath)
	}
	return config.LoadFromEnv()
}

// cliLogger builds a stderr console logger at the requested level.
func cliLogger(opts *RootOptions) (logging.Logger, error) {
	return logging.NewLogger(logging.LogConfig{
		Level:            opts.LogLevel,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// defaultFactory assembles the engine from configuration on first use.
func defaultFactory(opts *RootOptions) ServiceFactory {
	return func(ctx context.Context) (appschedule.Service, func(), error) {
		cfg, err := loadConfig(opts)
		if err != nil {
			return nil, nil, err
		}
		logger, err := cliLogger(opts)
		if err != nil {
			return nil, nil, err
		}
		rt, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{})
		if err != nil {
			return nil, nil, err
		}
		return rt.Service, rt.Close, nil
	}
}

// printResult writes v as indented JSON when --json is set; otherwise the
// caller's text fallback runs.
func printResult(out io.Writer, opts *RootOptions, v interface{}, text func()) error {
	if opts.JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
