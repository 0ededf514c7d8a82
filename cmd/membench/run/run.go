// Package runcmder provides the `membench run` CLI command.
package runcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/cliui"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/eventstream"
	"github.com/papercomputeco/membench/pkg/generate"
	"github.com/papercomputeco/membench/pkg/indexer"
	"github.com/papercomputeco/membench/pkg/logger"
	"github.com/papercomputeco/membench/pkg/manifest"
	"github.com/papercomputeco/membench/pkg/report"
	"github.com/papercomputeco/membench/pkg/retrieval"
)

const runLongDesc string = `Run the full benchmark pipeline against a dataset.

Indexes every conversation into the memory backend, retrieves the top-N
chunks for every question, and scores the results against gold evidence.
When an llm provider is configured, also generates and scores answers.

Per-conversation failures are recorded in the run manifest and never
change the exit code. Only configuration errors exit non-zero.

Examples:
  membench run --dataset locomo.json
  membench run --dataset locomo.json --workers 4 --limit 10
  membench run --dataset locomo.json --llm-provider ollama --llm-model qwen3
  membench run --dataset locomo.json --rebuild`

const runShortDesc string = "Run the full index, retrieve, evaluate pipeline"

// runFlagKeys are the registry flags bound into the viper precedence
// chain for this command.
var runFlagKeys = []string{
	config.FlagWorkers,
	config.FlagConsolidateEvery,
	config.FlagTopN,
	config.FlagContextK,
	config.FlagCutoffs,
	config.FlagTimeout,
	config.FlagLimit,
	config.FlagMemoryProvider,
	config.FlagMemoryDir,
	config.FlagVectorProvider,
	config.FlagVectorTarget,
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
	config.FlagArchiveProvider,
	config.FlagArchiveTarget,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagLogDir,
}

type runCommander struct {
	dataset string
	rebuild bool
	debug   bool

	workers          uint
	consolidateEvery uint
	topN             uint
	contextK         uint
	cutoffs          string
	timeout          uint
	limit            uint
	memoryProvider   string
	memoryDir        string
	vectorProvider   string
	vectorTarget     string
	embeddingProv    string
	embeddingTgt     string
	embeddingModel   string
	embeddingDims    uint
	llmProvider      string
	llmEndpoint      string
	llmAPIKey        string
	llmModel         string
	disableThinking  bool
	resultsDir       string
	archiveProvider  string
	archiveTarget    string
	eventsProvider   string
	eventsBrokers    string
	eventsTopic      string
	logDir           string
}

// NewRunCmd creates the run cobra command.
func NewRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: runShortDesc,
		Long:  runLongDesc,
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

	cmd.Flags().StringVar(&cmder.dataset, "dataset", "", "Path to the benchmark dataset JSON file")
	_ = cmd.MarkFlagRequired("dataset")
	cmd.Flags().BoolVar(&cmder.rebuild, "rebuild", false, "Rebuild indexes that already carry a completion marker")

	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagConsolidateEvery, &cmder.consolidateEvery)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopN, &cmder.topN)
	config.AddUintFlag(cmd, config.Flags, config.FlagContextK, &cmder.contextK)
	config.AddStringFlag(cmd, config.Flags, config.FlagCutoffs, &cmder.cutoffs)
	config.AddUintFlag(cmd, config.Flags, config.FlagTimeout, &cmder.timeout)
	config.AddUintFlag(cmd, config.Flags, config.FlagLimit, &cmder.limit)
	config.AddStringFlag(cmd, config.Flags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagMemoryDir, &cmder.memoryDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorProvider, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorTarget, &cmder.vectorTarget)
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
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveProvider, &cmder.archiveProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagArchiveTarget, &cmder.archiveTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogDir, &cmder.logDir)

	return cmd
}

func (c *runCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, runFlagKeys)
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

	runID := manifest.NewRunID(time.Now())

	log, closeLog, err := logger.NewRunLogger(c.debug, cfg.Log.Dir, runID)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	conversations, err := dataset.Load(c.dataset, int(cfg.Benchmark.Limit))
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	// Stages run under the optional run timeout. Artifact writes,
	// archiving, and the finish event use the base context so a timed
	// out run still lands its partial results.
	stageCtx := ctx
	if cfg.Benchmark.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Benchmark.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	events, err := stack.NewPublisher(cfg)
	if err != nil {
		return err
	}
	defer events.Close()

	embedder, err := stack.NewEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	notes, err := stack.NewLLMProvider(cfg)
	if err != nil {
		return err
	}
	if notes != nil {
		defer notes.Close()
	}

	adapter, err := stack.NewAdapter(cfg, embedder, notes, log)
	if err != nil {
		return err
	}
	defer adapter.Close()

	mft := manifest.New(runID, cfg.Redacted())

	log.Info("starting benchmark run",
		zap.String("run_id", runID),
		zap.String("dataset", c.dataset),
		zap.Int("conversations", len(conversations)),
		zap.Uint("workers", cfg.Benchmark.Workers),
	)

	stack.Publish(ctx, events, log, eventstream.NewRunEvent(eventstream.EventTypeRunStarted, runID))

	started := time.Now()

	// Index stage
	indexStarted := time.Now()
	ix, err := indexer.New(&indexer.Config{
		Adapter:          adapter,
		NumWorkers:       cfg.Benchmark.Workers,
		ConsolidateEvery: int(cfg.Benchmark.ConsolidateEvery),
		Rebuild:          c.rebuild,
		Manifest:         mft,
		Events:           events,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	indexSummary := ix.Run(stageCtx, conversations)
	c.finishStage(ctx, mft, events, log, runID, manifest.StageIndex, indexStarted)

	// Retrieve stage
	retrieveStarted := time.Now()
	runner, err := retrieval.New(&retrieval.Config{
		Adapter:    adapter,
		TopN:       int(cfg.Benchmark.TopN),
		NumWorkers: cfg.Benchmark.Workers,
		Manifest:   mft,
		Events:     events,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	results, retrieveSummary := runner.Run(stageCtx, conversations)
	c.finishStage(ctx, mft, events, log, runID, manifest.StageRetrieve, retrieveStarted)

	resultsPath := report.RetrievalResultsPath(cfg.Results.Dir, runID)
	if err := report.WriteJSON(resultsPath, report.NewRetrievalResults(runID, int(cfg.Benchmark.TopN), results)); err != nil {
		return fmt.Errorf("writing retrieval results: %w", err)
	}

	// Evaluate stage
	evalStarted := time.Now()
	evaluator := report.NewEvaluator(&report.EvaluatorConfig{
		Resolver: report.NewSidecarResolver(cfg.Memory.Dir),
		Cutoffs:  cutoffs,
		Logger:   log,
	})
	evals, failedQueries := evaluator.Evaluate(results)
	retrievalEval := report.BuildRetrievalEval(runID, evals, cutoffs, failedQueries)
	if err := report.WriteJSON(report.RetrievalEvalPath(cfg.Results.Dir, runID), retrievalEval); err != nil {
		return fmt.Errorf("writing retrieval eval: %w", err)
	}
	c.finishStage(ctx, mft, events, log, runID, manifest.StageEvaluate, evalStarted)

	// Optional generation stage
	var generationEval *report.GenerationEval
	if notes != nil {
		generateStarted := time.Now()
		gen, err := generate.New(&generate.Config{
			Provider: notes,
			Embedder: embedder,
			ContextK: int(cfg.Benchmark.ContextK),
			Manifest: mft,
			Logger:   log,
		})
		if err != nil {
			return err
		}
		answers, generateSummary := gen.Run(stageCtx, results)
		generationEval = report.BuildGenerationEval(runID, answers)
		if err := report.WriteJSON(report.GenerationEvalPath(cfg.Results.Dir, runID), generationEval); err != nil {
			return fmt.Errorf("writing generation eval: %w", err)
		}
		c.finishStage(ctx, mft, events, log, runID, manifest.StageGenerate, generateStarted)

		log.Info("generation stage finished",
			zap.Int("answered", generateSummary.Answered),
			zap.Int("failed", generateSummary.Failed),
			zap.Int("skipped", generateSummary.Skipped),
		)
	}

	elapsed := time.Since(started)

	mft.Finalize()
	if err := report.WriteJSON(report.PipelineManifestPath(cfg.Results.Dir, runID), mft); err != nil {
		return fmt.Errorf("writing pipeline manifest: %w", err)
	}

	c.archiveRun(ctx, cfg, runID, started, indexSummary, elapsed, retrievalEval, generationEval, log)

	finished := eventstream.NewRunEvent(eventstream.EventTypeRunFinished, runID)
	finished.DurationMs = elapsed.Milliseconds()
	stack.Publish(ctx, events, log, finished)

	log.Info("benchmark run finished",
		zap.String("run_id", runID),
		zap.Int("indexed", indexSummary.Completed),
		zap.Int("failed", indexSummary.Failed),
		zap.Int("skipped", indexSummary.Skipped),
		zap.Int("queries", retrieveSummary.Queries),
		zap.Duration("elapsed", elapsed),
	)

	c.printSummary(cmd, runID, indexSummary, retrieveSummary, retrievalEval, generationEval, elapsed)

	return nil
}

// finishStage records a stage's wall-clock timing and emits the stage
// completed event.
func (c *runCommander) finishStage(ctx context.Context, mft *manifest.Manifest, events eventstream.Publisher, log *zap.Logger, runID, stage string, startedAt time.Time) {
	finishedAt := time.Now()
	mft.RecordStage(stage, startedAt, finishedAt)

	event := eventstream.NewRunEvent(eventstream.EventTypeStageCompleted, runID)
	event.Stage = stage
	event.DurationMs = finishedAt.Sub(startedAt).Milliseconds()
	stack.Publish(ctx, events, log, event)
}

// archiveRun stores the run record best-effort. Archive failures are
// logged, never fatal.
func (c *runCommander) archiveRun(ctx context.Context, cfg *config.Config, runID string, startedAt time.Time, ixSummary indexer.Summary, elapsed time.Duration, retrievalEval *report.RetrievalEval, generationEval *report.GenerationEval, log *zap.Logger) {
	driver, err := stack.NewArchive(ctx, cfg)
	if err != nil {
		log.Warn("creating archive driver", zap.Error(err))
		return
	}
	if driver == nil {
		return
	}
	defer driver.Close()

	record := &archive.Record{
		RunID:       runID,
		DatasetPath: c.dataset,
		CreatedAt:   startedAt.UTC(),
		Succeeded:   ixSummary.Completed,
		Failed:      ixSummary.Failed,
		Skipped:     ixSummary.Skipped,
		DurationMs:  elapsed.Milliseconds(),
	}

	if snapshot, err := json.Marshal(cfg.Redacted()); err == nil {
		record.Config = snapshot
	}

	headline := make(map[string]any)
	if retrievalEval != nil {
		headline["retrieval"] = retrievalEval.RankingSummary
	}
	if generationEval != nil {
		headline["generation"] = generationEval.Overall
	}
	if len(headline) > 0 {
		if raw, err := json.Marshal(headline); err == nil {
			record.Metrics = raw
		}
	}

	if _, err := driver.Put(ctx, record); err != nil {
		log.Warn("archiving run", zap.String("run_id", runID), zap.Error(err))
	}
}

func (c *runCommander) printSummary(cmd *cobra.Command, runID string, ixSummary indexer.Summary, rSummary retrieval.Summary, retrievalEval *report.RetrievalEval, generationEval *report.GenerationEval, elapsed time.Duration) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\n%s Run %s finished %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(runID),
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(elapsed))),
	)
	fmt.Fprintf(out, "  indexed    %d completed, %d failed, %d skipped, %d units\n",
		ixSummary.Completed, ixSummary.Failed, ixSummary.Skipped, ixSummary.Units)
	fmt.Fprintf(out, "  retrieved  %d queries, %d failed\n",
		rSummary.Queries, rSummary.QueryFailures)

	if retrievalEval != nil {
		for _, k := range retrievalEval.Cutoffs {
			avgs, ok := retrievalEval.Macro[k]
			if !ok {
				continue
			}
			fmt.Fprintf(out, "  ndcg@%-4d  %.4f  recall@%-4d %.4f\n", k, avgs.NDCG, k, avgs.Recall)
		}
	}

	if generationEval != nil {
		fmt.Fprintf(out, "  answers    %d scored, f1 %.4f, rouge-l %.4f\n",
			generationEval.Overall.Count, generationEval.Overall.F1, generationEval.Overall.ROUGEL)
	}
}
