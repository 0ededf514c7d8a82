// Package deckcmder provides the deck command for benchmark run dashboards.
package deckcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/report"
)

const deckLongDesc string = `Deck is a dashboard for archived benchmark runs.

Summarize archived runs with a TUI and drill down into a single run's
retrieval and generation metrics.

Examples:
  membench deck
  membench deck --since 24h
  membench deck --from 2026-08-01 --to 2026-08-15
  membench deck --sort ndcg --dataset locomo
  membench deck --run 20260815_104512
`

const deckShortDesc string = "Deck - dashboard for archived benchmark runs"

var deckFlagKeys = []string{
	config.FlagArchiveProvider,
	config.FlagArchiveTarget,
	config.FlagResultsDir,
}

type deckCommander struct {
	since   string
	from    string
	to      string
	sort    string
	dataset string
	status  string
	runID   string

	archiveProvider string
	archiveTarget   string
	resultsDir      string
}

func NewDeckCmd() *cobra.Command {
	cmder := &deckCommander{}

	cmd := &cobra.Command{
		Use:   "deck",
		Short: deckShortDesc,
		Long:  deckLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.since, "since", "", "Look back duration (e.g. 24h)")
	cmd.Flags().StringVar(&cmder.from, "from", "", "Start time (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&cmder.to, "to", "", "End time (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&cmder.sort, "sort", "recent", "Sort runs by recent|ndcg|duration|failures")
	cmd.Flags().StringVar(&cmder.dataset, "dataset", "", "Filter by dataset path substring")
	cmd.Flags().StringVar(&cmder.status, "status", "", "Filter by status (clean|degraded|empty)")
	cmd.Flags().StringVar(&cmder.runID, "run", "", "Drill into a specific run ID")

	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveProvider, &cmder.archiveProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveTarget, &cmder.archiveTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagResultsDir, &cmder.resultsDir)

	return cmd
}

func (c *deckCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, deckFlagKeys)
	if err != nil {
		return err
	}

	driver, err := stack.NewArchive(ctx, cfg)
	if err != nil {
		return err
	}
	if driver == nil {
		return fmt.Errorf("run archive is disabled (archive.provider is %q)", cfg.Archive.Provider)
	}
	defer driver.Close()

	filters, err := c.parseFilters()
	if err != nil {
		return err
	}

	return runDeckTUI(ctx, driver, filters)
}

func (c *deckCommander) parseFilters() (deckFilters, error) {
	filters := deckFilters{
		Sort:    strings.ToLower(strings.TrimSpace(c.sort)),
		Dataset: strings.TrimSpace(c.dataset),
		Status:  strings.ToLower(strings.TrimSpace(c.status)),
		Run:     strings.TrimSpace(c.runID),
	}

	if c.since != "" {
		duration, err := time.ParseDuration(c.since)
		if err != nil {
			return filters, fmt.Errorf("invalid since duration: %w", err)
		}
		filters.Since = duration
	}

	if c.from != "" {
		parsed, err := parseTime(c.from)
		if err != nil {
			return filters, fmt.Errorf("invalid from time: %w", err)
		}
		filters.From = &parsed
	}

	if c.to != "" {
		parsed, err := parseTime(c.to)
		if err != nil {
			return filters, fmt.Errorf("invalid to time: %w", err)
		}
		filters.To = &parsed
	}

	return filters, nil
}

func parseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}

	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}

	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, nil
	}

	return time.Time{}, fmt.Errorf("expected RFC3339 or YYYY-MM-DD")
}

const (
	statusClean    = "clean"
	statusDegraded = "degraded"
	statusEmpty    = "empty"
)

// deckRun is one archived run flattened for display: outcome counts,
// wall-clock duration, and whatever metrics and config snapshot the
// record carries.
type deckRun struct {
	RunID     string
	Dataset   string
	CreatedAt time.Time
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
	Status    string

	Retrieval  *report.RankingSummary
	Generation *report.TextAverages
	Config     *config.Config
}

// runMetrics mirrors the metrics payload archived by membench run.
type runMetrics struct {
	Retrieval  *report.RankingSummary `json:"retrieval"`
	Generation *report.TextAverages   `json:"generation"`
}

func newDeckRun(record *archive.Record) deckRun {
	run := deckRun{
		RunID:     record.RunID,
		Dataset:   record.DatasetPath,
		CreatedAt: record.CreatedAt,
		Succeeded: record.Succeeded,
		Failed:    record.Failed,
		Skipped:   record.Skipped,
		Duration:  time.Duration(record.DurationMs) * time.Millisecond,
		Status:    runStatusOf(record),
	}

	if len(record.Metrics) > 0 {
		var metrics runMetrics
		if err := json.Unmarshal(record.Metrics, &metrics); err == nil {
			run.Retrieval = metrics.Retrieval
			run.Generation = metrics.Generation
		}
	}

	if len(record.Config) > 0 {
		var cfg config.Config
		if err := json.Unmarshal(record.Config, &cfg); err == nil {
			run.Config = &cfg
		}
	}

	return run
}

func runStatusOf(record *archive.Record) string {
	switch {
	case record.Failed > 0:
		return statusDegraded
	case record.Succeeded == 0:
		return statusEmpty
	default:
		return statusClean
	}
}

// headlineScores returns the macro averages at the run's largest cutoff,
// which is the cutoff the run list and aggregates report.
func (r deckRun) headlineScores() (report.CutoffAverages, int, bool) {
	if r.Retrieval == nil || len(r.Retrieval.Macro) == 0 {
		return report.CutoffAverages{}, 0, false
	}

	cutoff := 0
	for k := range r.Retrieval.Macro {
		if k > cutoff {
			cutoff = k
		}
	}

	return r.Retrieval.Macro[cutoff], cutoff, true
}

type deckFilters struct {
	Sort    string
	Status  string
	Dataset string
	Run     string
	Since   time.Duration
	From    *time.Time
	To      *time.Time
}

func (f deckFilters) match(run deckRun) bool {
	if f.Status != "" && run.Status != f.Status {
		return false
	}
	if f.Dataset != "" && !strings.Contains(run.Dataset, f.Dataset) {
		return false
	}
	if f.Since > 0 && run.CreatedAt.Before(time.Now().Add(-f.Since)) {
		return false
	}
	if f.From != nil && run.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && run.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

func loadOverview(ctx context.Context, driver archive.Driver, filters deckFilters) (*deckOverview, error) {
	records, err := driver.List(ctx)
	if err != nil {
		return nil, err
	}

	runs := make([]deckRun, 0, len(records))
	for _, record := range records {
		run := newDeckRun(record)
		if !filters.match(run) {
			continue
		}
		runs = append(runs, run)
	}
	sortRuns(runs, filters.Sort)

	return &deckOverview{Runs: runs}, nil
}

// sortRuns orders runs in place. Runs without retrieval metrics sort
// after scored runs under the ndcg key.
func sortRuns(runs []deckRun, key string) {
	sort.SliceStable(runs, func(i, j int) bool {
		switch key {
		case "ndcg":
			a, _, aScored := runs[i].headlineScores()
			b, _, bScored := runs[j].headlineScores()
			if aScored != bScored {
				return aScored
			}
			if a.NDCG == b.NDCG {
				return runs[i].CreatedAt.After(runs[j].CreatedAt)
			}
			return a.NDCG > b.NDCG
		case "duration":
			if runs[i].Duration == runs[j].Duration {
				return runs[i].CreatedAt.After(runs[j].CreatedAt)
			}
			return runs[i].Duration > runs[j].Duration
		case "failures":
			if runs[i].Failed == runs[j].Failed {
				return runs[i].CreatedAt.After(runs[j].CreatedAt)
			}
			return runs[i].Failed > runs[j].Failed
		default:
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
	})
}
