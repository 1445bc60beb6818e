package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/linkboard/internal/config"
	"github.com/roach88/linkboard/internal/telemetry"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Database   string
	Registry   string
	As         string // caller identity for create, add and vote
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the linkboard CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "linkboard",
		Short: "linkboard - a link registry with vote tallies",
		Long: `A link registry where anyone can submit links and adjust their vote tallies.

Every mutation goes through a single engine that owns the SQLite database;
reads are served from the last published snapshot.

Configuration is read from flags, LINKBOARD_* environment variables and
./linkboard.yaml (or --config), in that order of precedence.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default ./linkboard.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Registry, "registry", "", "registry ID (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "caller identity")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewVoteCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// loadConfig resolves the configuration for one command and installs the
// default logger. Non-empty global flags and overrides win over every other
// source.
func (o *RootOptions) loadConfig(cmd *cobra.Command, overrides map[string]any) (config.Config, error) {
	v := viper.New()
	if o.Database != "" {
		v.Set("database", o.Database)
	}
	if o.Registry != "" {
		v.Set("registry", o.Registry)
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	cfg, err := config.Load(v, o.ConfigFile)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.LogLevel
	if o.Verbose {
		level = "debug"
	}
	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.LogFormat, level)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}
	slog.SetDefault(logger)

	return cfg, nil
}

// formatter returns an OutputFormatter writing to the command's streams.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (tests constructing subcommands directly).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
