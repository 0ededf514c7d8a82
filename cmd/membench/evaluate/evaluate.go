// Package evaluatecmder provides the `membench evaluate` CLI command.
package evaluatecmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/cliui"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/embeddings"
	"github.com/papercomputeco/membench/pkg/generate"
	"github.com/papercomputeco/membench/pkg/logger"
	"github.com/papercomputeco/membench/pkg/manifest"
	"github.com/papercomputeco/membench/pkg/report"
)

const evaluateLongDesc string = `Score a saved retrieval results artifact against gold evidence.

Reads the raw results artifact produced by membench run or membench
retrieve, resolves each query's evidence labels into stored unit ids
through the per-conversation sidecar tables, and computes ranking
metrics at every configured cutoff.

When an llm provider is configured the saved results are also replayed
through answer generation: each gold question is answered from its
retrieved chunks and the answer is scored against the reference.

The evaluation artifacts reuse the source artifact's run id so the
files pair up in the results directory.

Examples:
  membench evaluate --results ./membench_results/retrieval_results_20260815_104512.json
  membench evaluate --results results.json --cutoffs 1,3,10
  membench evaluate --results results.json --llm-provider ollama --llm-model qwen3`

const evaluateShortDesc string = "Score retrieval results against gold evidence"

var evaluateFlagKeys = []string{
	config.FlagCutoffs,
	config.FlagContextK,
	config.FlagMemoryDir,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMEndpoint,
	config.FlagLLMAPIKey,
	config.FlagLLMModel,
	config.FlagDisableThinking,
	config.FlagResultsDir,
	config.FlagLogDir,
}

type evaluateCommander struct {
	results string
	debug   bool

	cutoffs         string
	contextK        uint
	memoryDir       string
	embeddingProv   string
	embeddingTgt    string
	embeddingModel  string
	embeddingDims   uint
	llmProvider     string
	llmEndpoint     string
	llmAPIKey       string
	llmModel        string
	disableThinking bool
	resultsDir      string
	logDir          string
}

// NewEvaluateCmd creates the evaluate cobra command.
func NewEvaluateCmd() *cobra.Command {
	cmder := &evaluateCommander{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: evaluateShortDesc,
		Long:  evaluateLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.results, "results", "", "Path to a retrieval results artifact")
	_ = cmd.MarkFlagRequired("results")

	config.AddStringFlag(cmd, config.Flags, config.FlagCutoffs, &cmder.cutoffs)
	config.AddUintFlag(cmd, config.Flags, config.FlagContextK, &cmder.contextK)
	config.AddStringFlag(cmd, config.Flags, config.FlagMemoryDir, &cmder.memoryDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMProvider, &cmder.llmProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMEndpoint, &cmder.llmEndpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMAPIKey, &cmder.llmAPIKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagLLMModel, &cmder.llmModel)
	config.AddBoolFlag(cmd, config.Flags, config.FlagDisableThinking, &cmder.disableThinking)
	config.AddStringFlag(cmd, config.Flags, config.FlagResultsDir, &cmder.resultsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogDir, &cmder.logDir)

	return cmd
}

func (c *evaluateCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, evaluateFlagKeys)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	cutoffs, err := config.ParseCutoffs(cfg.Benchmark.Cutoffs)
	if err != nil {
		return err
	}

	var results report.RetrievalResults
	if err := report.ReadJSON(c.results, &results); err != nil {
		return fmt.Errorf("reading retrieval results: %w", err)
	}

	runID := results.RunID
	if runID == "" {
		runID = manifest.NewRunID(time.Now())
	}

	log, closeLog, err := logger.NewRunLogger(c.debug, cfg.Log.Dir, runID)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	notes, err := stack.NewLLMProvider(cfg)
	if err != nil {
		return err
	}

	var embedder embeddings.Embedder
	if notes != nil {
		defer notes.Close()

		embedder, err = stack.NewEmbedder(cfg)
		if err != nil {
			return err
		}
		defer embedder.Close()
	}

	log.Info("scoring retrieval results",
		zap.String("run_id", runID),
		zap.String("results", c.results),
		zap.Int("queries", len(results.Results)),
		zap.Ints("cutoffs", cutoffs),
	)

	started := time.Now()

	evaluator := report.NewEvaluator(&report.EvaluatorConfig{
		Resolver: report.NewSidecarResolver(cfg.Memory.Dir),
		Cutoffs:  cutoffs,
		Logger:   log,
	})

	evals, failedQueries := evaluator.Evaluate(results.Results)
	retrievalEval := report.BuildRetrievalEval(runID, evals, cutoffs, failedQueries)

	evalPath := report.RetrievalEvalPath(cfg.Results.Dir, runID)
	if err := report.WriteJSON(evalPath, retrievalEval); err != nil {
		return fmt.Errorf("writing retrieval eval: %w", err)
	}

	// Optional generation scoring over the same saved results
	var generationEval *report.GenerationEval
	var genPath string
	if notes != nil {
		gen, err := generate.New(&generate.Config{
			Provider: notes,
			Embedder: embedder,
			ContextK: int(cfg.Benchmark.ContextK),
			Logger:   log,
		})
		if err != nil {
			return err
		}

		answers, generateSummary := gen.Run(ctx, results.Results)
		generationEval = report.BuildGenerationEval(runID, answers)

		genPath = report.GenerationEvalPath(cfg.Results.Dir, runID)
		if err := report.WriteJSON(genPath, generationEval); err != nil {
			return fmt.Errorf("writing generation eval: %w", err)
		}

		log.Info("generation scoring finished",
			zap.Int("answered", generateSummary.Answered),
			zap.Int("failed", generateSummary.Failed),
			zap.Int("skipped", generateSummary.Skipped),
		)
	}

	elapsed := time.Since(started)

	log.Info("evaluation finished",
		zap.String("run_id", runID),
		zap.Int("total_queries", retrievalEval.TotalQueries),
		zap.Int("defined_queries", retrievalEval.DefinedQueries),
		zap.Int("failed_queries", retrievalEval.FailedQueries),
		zap.Duration("elapsed", elapsed),
	)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s Evaluation %s finished %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(runID),
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(elapsed))),
	)
	fmt.Fprintf(out, "  queries  %d total, %d defined, %d failed\n",
		retrievalEval.TotalQueries, retrievalEval.DefinedQueries, retrievalEval.FailedQueries)

	for _, k := range retrievalEval.Cutoffs {
		avgs, ok := retrievalEval.Macro[k]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  @%-4d    ndcg %.4f, recall %.4f, precision %.4f\n",
			k, avgs.NDCG, avgs.Recall, avgs.Precision)
	}

	fmt.Fprintf(out, "  eval     %s\n", cliui.DimStyle.Render(evalPath))

	if generationEval != nil {
		fmt.Fprintf(out, "  answers  %d scored, f1 %.4f, rouge-l %.4f\n",
			generationEval.Overall.Count, generationEval.Overall.F1, generationEval.Overall.ROUGEL)
		fmt.Fprintf(out, "  gen      %s\n", cliui.DimStyle.Render(genPath))
	}

	return nil
}
