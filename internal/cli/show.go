package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/linkboard/internal/engine"
	"github.com/roach88/linkboard/internal/ir"
	"github.com/roach88/linkboard/internal/store"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	All bool
	Log bool
}

// RegistrySummary is one row of show --all.
type RegistrySummary struct {
	Registry     string     `json:"registry"`
	Owner        ir.Address `json:"owner"`
	TotalEntries uint64     `json:"total_entries"`
	TotalVotes   int64      `json:"total_votes"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the state of a registry",
		Long: `Print the owner and entries of a registry, or a summary of every
registry with --all. With --log, print the registry's accepted commands in
seq order instead.

The database is locked by a running "linkboard serve"; query its
HTTP API instead while it runs.

Examples:
  linkboard show
  linkboard show --registry memes --format json
  linkboard show --all
  linkboard show --log --registry memes`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "summarize every registry")
	cmd.Flags().BoolVar(&opts.Log, "log", false, "print the registry's command log")
	cmd.MarkFlagsMutuallyExclusive("all", "log")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	st, err := store.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// A memory-only engine over the persisted projection; nothing is written.
	eng := engine.New(nil, engine.WithCapacity(cfg.MaxRecordBytes))
	if err := eng.Load(ctx, st); err != nil {
		return WrapExitError(ExitCommandError, "failed to load database", err)
	}

	f := opts.formatter(cmd)
	w := cmd.OutOrStdout()

	if opts.Log {
		cmds, err := st.ReadRegistryCommands(ctx, cfg.Registry)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read command log", err)
		}
		if f.Format == "json" {
			return f.Success(cmds)
		}
		writeLog(w, cfg.Registry, cmds)
		return nil
	}

	if opts.All {
		summaries := make([]RegistrySummary, 0)
		for _, id := range eng.Registries() {
			summaries = append(summaries, summarize(eng.FetchState(id)))
		}
		if f.Format == "json" {
			return f.Success(summaries)
		}
		writeSummaries(w, summaries)
		return nil
	}

	state := eng.FetchState(cfg.Registry)
	if f.Format == "json" {
		return f.Success(state)
	}
	writeState(w, state)
	return nil
}

func summarize(s ir.State) RegistrySummary {
	sum := RegistrySummary{
		Registry:     s.Registry,
		Owner:        s.Owner,
		TotalEntries: s.TotalEntries,
	}
	for _, e := range s.Entries {
		sum.TotalVotes += e.Vote
	}
	return sum
}

func writeState(w io.Writer, s ir.State) {
	if !s.Initialized {
		fmt.Fprintf(w, "Registry %s is not initialized.\n", s.Registry)
		return
	}

	fmt.Fprintf(w, "Registry: %s\n", s.Registry)
	fmt.Fprintf(w, "Owner:    %s\n", s.Owner)
	fmt.Fprintf(w, "Entries:  %d\n", s.TotalEntries)
	if len(s.Entries) == 0 {
		return
	}

	rows := make([][]string, 0, len(s.Entries))
	for _, e := range s.Entries {
		rows = append(rows, []string{
			strconv.FormatUint(e.Index, 10),
			e.Link,
			string(e.Submitter),
			strconv.FormatInt(e.Vote, 10),
		})
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Link", "Submitter", "Votes"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight},
	))
}

func writeSummaries(w io.Writer, summaries []RegistrySummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No registries found.")
		return
	}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Registry,
			string(s.Owner),
			strconv.FormatUint(s.TotalEntries, 10),
			strconv.FormatInt(s.TotalVotes, 10),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Registry", "Owner", "Entries", "Votes"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
	))
}

func writeLog(w io.Writer, registryID string, cmds []ir.CommandRecord) {
	if len(cmds) == 0 {
		fmt.Fprintf(w, "No commands logged for %s.\n", registryID)
		return
	}

	rows := make([][]string, 0, len(cmds))
	for _, cr := range cmds {
		rows = append(rows, []string{
			strconv.FormatInt(cr.Seq, 10),
			string(cr.Command.Kind),
			string(cr.Command.Caller),
			describeArgs(cr.Command),
			describeResult(cr),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Seq", "Command", "Caller", "Args", "Result"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
	))
}

func describeArgs(c ir.Command) string {
	switch c.Kind {
	case ir.CommandAddLink:
		return strconv.Quote(c.Link)
	case ir.CommandVote:
		return fmt.Sprintf("#%d %+d", c.Index, c.Delta)
	default:
		return ""
	}
}

func describeResult(cr ir.CommandRecord) string {
	switch cr.Command.Kind {
	case ir.CommandAddLink:
		return fmt.Sprintf("index %d", cr.Result.Index)
	case ir.CommandVote:
		return fmt.Sprintf("vote %d", cr.Result.Vote)
	default:
		return "ok"
	}
}
