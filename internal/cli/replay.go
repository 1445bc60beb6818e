package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/store"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the command log and verify the stored state",
		Long: `Replay the command log and verify that it reproduces the stored state.

Every logged command is re-applied in seq order to fresh registries and must
produce the logged result. The rebuilt registries are then compared with the
stored ones by state hash.

Exit codes:
  0 - Stored state matches the command log
  1 - Divergence detected
  2 - Command error (database not found, log cannot be replayed, etc.)

Examples:
  linkboard replay --db ./linkboard.db
  linkboard replay --db ./linkboard.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	report, err := engine.VerifyReplay(commandContext(cmd), st)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay command log", err)
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, report)
	}

	return outputReplayText(cmd, report, opts.Verbose)
}

// outputReplayJSON outputs the replay report as JSON.
func outputReplayJSON(cmd *cobra.Command, report engine.ReplayReport) error {
	response := CLIResponse{
		Status: "ok",
		Data:   report,
	}

	if !report.OK() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY_DIVERGED",
			Message: fmt.Sprintf("%d registry(s) diverged", len(report.Divergences)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.OK() {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay report as text.
func outputReplayText(cmd *cobra.Command, report engine.ReplayReport, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d command(s), %d registry(s)\n", report.Commands, report.Registries)
	fmt.Fprintln(w)

	for _, d := range report.Divergences {
		fmt.Fprintf(w, "✗ Registry: %s\n", d.Registry)
		fmt.Fprintf(w, "  %s\n", d.Reason)
		if verbose && d.Stored != "" {
			fmt.Fprintf(w, "  Stored:   %s\n", d.Stored)
			fmt.Fprintf(w, "  Replayed: %s\n", d.Replayed)
		}
		fmt.Fprintln(w)
	}

	if report.OK() {
		fmt.Fprintln(w, "✓ Stored state matches the command log")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}
