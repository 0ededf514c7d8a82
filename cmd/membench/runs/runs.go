// Package runscmder provides the `membench runs` CLI commands for
// browsing archived benchmark runs.
package runscmder

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/config"
)

var runsFlagKeys = []string{
	config.FlagArchiveProvider,
	config.FlagArchiveTarget,
	config.FlagResultsDir,
}

type runsCommander struct {
	archiveProvider string
	archiveTarget   string
	resultsDir      string
}

// NewRunsCmd creates the parent runs command. Bare invocation lists
// archived runs.
func NewRunsCmd() *cobra.Command {
	cmder := &runsCommander{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse archived benchmark runs",
		Long: `Browse benchmark runs stored in the run archive.

Examples:
  membench runs
  membench runs list
  membench runs show 20260815_104512`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.list(cmd.Context(), cmd)
		},
	}

	addArchiveFlags(cmd, cmder)

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmder := &runsCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.list(cmd.Context(), cmd)
		},
	}

	addArchiveFlags(cmd, cmder)

	return cmd
}

func addArchiveFlags(cmd *cobra.Command, cmder *runsCommander) {
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveProvider, &cmder.archiveProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveTarget, &cmder.archiveTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagResultsDir, &cmder.resultsDir)
}

// openArchive builds the archive driver for a runs command. The "none"
// provider has nothing to browse, so it errors rather than listing an
// empty archive.
func openArchive(ctx context.Context, cmd *cobra.Command) (archive.Driver, error) {
	cfg, err := stack.LoadConfig(cmd, runsFlagKeys)
	if err != nil {
		return nil, err
	}

	driver, err := stack.NewArchive(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if driver == nil {
		return nil, fmt.Errorf("run archive is disabled (archive.provider is %q)", cfg.Archive.Provider)
	}

	return driver, nil
}

func (c *runsCommander) list(ctx context.Context, cmd *cobra.Command) error {
	driver, err := openArchive(ctx, cmd)
	if err != nil {
		return err
	}
	defer driver.Close()

	records, err := driver.List(ctx)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No archived runs. Run a benchmark with: membench run --dataset <path>")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tCREATED\tDATASET\tOK\tFAIL\tSKIP\tDURATION")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			record.RunID,
			record.CreatedAt.Local().Format("2006-01-02 15:04"),
			datasetCell(record.DatasetPath),
			record.Succeeded,
			record.Failed,
			record.Skipped,
			(time.Duration(record.DurationMs) * time.Millisecond).Round(time.Second),
		)
	}
	return w.Flush()
}

func datasetCell(path string) string {
	if path == "" {
		return "-"
	}
	if len(path) > 40 {
		return "..." + path[len(path)-37:]
	}
	return path
}
