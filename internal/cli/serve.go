package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/linkboard/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine behind the JSON HTTP API",
		Long: `Start the engine over the database and serve the JSON HTTP API until
interrupted.

The serving process holds the database lock and is the only writer.
Callers identify themselves with the X-Linkboard-Identity header.

Examples:
  linkboard serve
  linkboard serve --db ./linkboard.db --listen 127.0.0.1:9000
  LINKBOARD_TRACING=true linkboard serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "HTTP listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	var overrides map[string]any
	if opts.Listen != "" {
		overrides = map[string]any{"listen": opts.Listen}
	}
	cfg, err := opts.loadConfig(cmd, overrides)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	srv := server.New(cfg.Listen, s.engine, slog.Default(), server.WithHealthCheck(s.store))
	if err := srv.Start(ctx); err != nil {
		_ = s.Close()
		return WrapExitError(ExitCommandError, "failed to start api server", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Serving %s on http://%s\n", cfg.Database, srv.Addr())
	fmt.Fprintln(out, "Press Ctrl-C to stop.")

	<-ctx.Done()
	slog.Info("shutting down", "cause", context.Cause(ctx))

	// In-flight requests finish before the engine stops answering.
	srv.Stop()
	if err := s.Close(); err != nil {
		return WrapExitError(ExitFailure, "engine shutdown", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
