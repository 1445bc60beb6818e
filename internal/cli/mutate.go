package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/linkboard/internal/config"
	"github.com/roach88/linkboard/internal/ir"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Initialize a registry",
		Long: `Initialize a registry. The caller named by --as becomes its owner.

Exit codes:
  0 - Registry created
  1 - Rejected (ALREADY_INITIALIZED, MISSING_IDENTITY)
  2 - Command error (database cannot be opened, etc.)

Examples:
  linkboard create --as alice
  linkboard create --as alice --registry memes --db ./linkboard.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, cfg config.Config) (any, string, error) {
				owner := ir.Address(rootOpts.As)
				if err := s.engine.Create(ctx, cfg.Registry, owner); err != nil {
					return nil, "", err
				}
				data := map[string]any{
					"registry": cfg.Registry,
					"owner":    owner,
				}
				return data, fmt.Sprintf("Created registry %s (owner %s)", cfg.Registry, owner), nil
			})
		},
	}
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <link>",
		Short: "Submit a link to a registry",
		Long: `Append a link to a registry. Its vote tally starts at zero.

Exit codes:
  0 - Link appended; its index is printed
  1 - Rejected (NOT_INITIALIZED, EMPTY_LINK, CAPACITY_EXCEEDED, MISSING_IDENTITY)
  2 - Command error

Examples:
  linkboard add --as bob https://example.com/cat.gif`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			link := args[0]
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, cfg config.Config) (any, string, error) {
				index, err := s.engine.AddLink(ctx, cfg.Registry, ir.Address(rootOpts.As), link)
				if err != nil {
					return nil, "", err
				}
				data := map[string]any{
					"registry": cfg.Registry,
					"index":    index,
					"link":     link,
				}
				return data, fmt.Sprintf("Added link #%d to %s", index, cfg.Registry), nil
			})
		},
	}
}

// NewVoteCommand creates the vote command.
func NewVoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vote <index> <up|down|+1|-1>",
		Short: "Adjust the vote tally of an entry",
		Long: `Adjust the vote tally of one entry by one. Any identity may vote any
number of times; tallies may go negative.

Use -- before -1 so it is not read as a flag.

Exit codes:
  0 - Tally adjusted; the new tally is printed
  1 - Rejected (NOT_INITIALIZED, INDEX_OUT_OF_RANGE, MISSING_IDENTITY)
  2 - Command error (bad index or direction, database cannot be opened)

Examples:
  linkboard vote --as carol 0 up
  linkboard vote --as carol 0 down
  linkboard vote --as carol -- 0 -1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("invalid index %q", args[0]), err)
			}
			delta, err := parseDelta(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid vote", err)
			}
			return withSession(rootOpts, cmd, func(ctx context.Context, s *session, cfg config.Config) (any, string, error) {
				vote, err := s.engine.Vote(ctx, cfg.Registry, ir.Address(rootOpts.As), index, delta)
				if err != nil {
					return nil, "", err
				}
				data := map[string]any{
					"registry": cfg.Registry,
					"index":    index,
					"vote":     vote,
				}
				return data, fmt.Sprintf("Entry #%d in %s now has %d votes", index, cfg.Registry, vote), nil
			})
		},
	}
}

// parseDelta maps a vote direction to -1 or +1.
func parseDelta(s string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "+1", "1":
		return 1, nil
	case "down", "-1":
		return -1, nil
	}
	return 0, fmt.Errorf("%q: must be up, down, +1 or -1", s)
}

// withSession runs one mutation against a fresh session and reports its
// outcome. fn returns the JSON payload and the text line on success.
func withSession(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, *session, config.Config) (any, string, error)) error {
	cfg, err := opts.loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	s, err := openSession(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	data, line, runErr := fn(ctx, s, cfg)
	if closeErr := s.Close(); closeErr != nil && runErr == nil {
		return WrapExitError(ExitCommandError, "failed to close database", closeErr)
	}
	if runErr != nil {
		return f.Rejected(runErr)
	}

	if f.Format == "json" {
		return f.Success(data)
	}
	return f.Success(line)
}
