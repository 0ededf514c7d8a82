package runscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/cliui"
	"github.com/papercomputeco/membench/pkg/report"
)

type showCommander struct {
	runsCommander
}

func newShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Render one archived run's summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.show(cmd.Context(), cmd, args[0])
		},
	}

	addArchiveFlags(cmd, &cmder.runsCommander)

	return cmd
}

func (c *showCommander) show(ctx context.Context, cmd *cobra.Command, runID string) error {
	driver, err := openArchive(ctx, cmd)
	if err != nil {
		return err
	}
	defer driver.Close()

	record, err := driver.Get(ctx, runID)
	if err != nil {
		return err
	}

	rendered, err := cliui.RenderMarkdown(recordMarkdown(record))
	if err != nil {
		// Fall back to the raw markdown when the renderer fails.
		fmt.Fprintln(cmd.OutOrStdout(), recordMarkdown(record))
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), rendered)
	return nil
}

// headlineMetrics mirrors the metrics payload archived by membench run.
type headlineMetrics struct {
	Retrieval  *report.RankingSummary `json:"retrieval"`
	Generation *report.TextAverages   `json:"generation"`
}

func recordMarkdown(record *archive.Record) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Run %s\n\n", record.RunID)
	fmt.Fprintf(&b, "- **Created:** %s\n", record.CreatedAt.Local().Format(time.RFC1123))
	if record.DatasetPath != "" {
		fmt.Fprintf(&b, "- **Dataset:** `%s`\n", record.DatasetPath)
	}
	fmt.Fprintf(&b, "- **Conversations:** %d completed, %d failed, %d skipped\n",
		record.Succeeded, record.Failed, record.Skipped)
	fmt.Fprintf(&b, "- **Duration:** %s\n",
		(time.Duration(record.DurationMs) * time.Millisecond).Round(time.Second))

	if len(record.Metrics) > 0 {
		var metrics headlineMetrics
		if err := json.Unmarshal(record.Metrics, &metrics); err == nil {
			writeMetricsMarkdown(&b, &metrics)
		}
	}

	return b.String()
}

func writeMetricsMarkdown(b *strings.Builder, metrics *headlineMetrics) {
	if metrics.Retrieval != nil && len(metrics.Retrieval.Macro) > 0 {
		cutoffs := make([]int, 0, len(metrics.Retrieval.Macro))
		for k := range metrics.Retrieval.Macro {
			cutoffs = append(cutoffs, k)
		}
		sort.Ints(cutoffs)

		fmt.Fprintf(b, "\n## Retrieval\n\n")
		fmt.Fprintf(b, "| Cutoff | nDCG | Recall | Precision |\n")
		fmt.Fprintf(b, "|--------|------|--------|-----------|\n")
		for _, k := range cutoffs {
			avgs := metrics.Retrieval.Macro[k]
			fmt.Fprintf(b, "| @%d | %.4f | %.4f | %.4f |\n", k, avgs.NDCG, avgs.Recall, avgs.Precision)
		}
	}

	if metrics.Generation != nil && metrics.Generation.Count > 0 {
		fmt.Fprintf(b, "\n## Generation\n\n")
		fmt.Fprintf(b, "| Answers | F1 | BLEU-1 | ROUGE-L |\n")
		fmt.Fprintf(b, "|---------|----|--------|---------|\n")
		fmt.Fprintf(b, "| %d | %.4f | %.4f | %.4f |\n",
			metrics.Generation.Count, metrics.Generation.F1, metrics.Generation.BLEU1, metrics.Generation.ROUGEL)
	}
}
