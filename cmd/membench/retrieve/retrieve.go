// Package retrievecmder provides the `membench retrieve` CLI command.
package retrievecmder

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/cliui"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/eventstream"
	"github.com/papercomputeco/membench/pkg/logger"
	"github.com/papercomputeco/membench/pkg/manifest"
	"github.com/papercomputeco/membench/pkg/report"
	"github.com/papercomputeco/membench/pkg/retrieval"
)

const retrieveLongDesc string = `Run retrieval queries against built memory indexes.

Issues every dataset question against its conversation's index and
records the top-N chunks per query. Conversations without a completed
index are skipped and recorded in the run manifest.

Writes the raw results artifact to the results directory so it can be
scored later with membench evaluate.

Examples:
  membench retrieve --dataset locomo.json
  membench retrieve --dataset locomo.json --top-n 50`

const retrieveShortDesc string = "Run retrieval queries against built indexes"

var retrieveFlagKeys = []string{
	config.FlagWorkers,
	config.FlagTopN,
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
	config.FlagResultsDir,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagLogDir,
}

type retrieveCommander struct {
	dataset string
	debug   bool

	workers        uint
	topN           uint
	timeout        uint
	limit          uint
	memoryProvider string
	memoryDir      string
	vectorProvider string
	vectorTarget   string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	resultsDir     string
	eventsProvider string
	eventsBrokers  string
	eventsTopic    string
	logDir         string
}

// NewRetrieveCmd creates the retrieve cobra command.
func NewRetrieveCmd() *cobra.Command {
	cmder := &retrieveCommander{}

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: retrieveShortDesc,
		Long:  retrieveLongDesc,
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

	config.AddUintFlag(cmd, config.Flags, config.FlagWorkers, &cmder.workers)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopN, &cmder.topN)
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
	config.AddStringFlag(cmd, config.Flags, config.FlagResultsDir, &cmder.resultsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogDir, &cmder.logDir)

	return cmd
}

func (c *retrieveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, retrieveFlagKeys)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
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

	adapter, err := stack.NewAdapter(cfg, embedder, nil, log)
	if err != nil {
		return err
	}
	defer adapter.Close()

	mft := manifest.New(runID, cfg.Redacted())

	log.Info("starting retrieval run",
		zap.String("run_id", runID),
		zap.String("dataset", c.dataset),
		zap.Int("conversations", len(conversations)),
		zap.Uint("top_n", cfg.Benchmark.TopN),
	)

	stack.Publish(ctx, events, log, eventstream.NewRunEvent(eventstream.EventTypeRunStarted, runID))

	started := time.Now()

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

	results, summary := runner.Run(stageCtx, conversations)
	finishedAt := time.Now()
	mft.RecordStage(manifest.StageRetrieve, started, finishedAt)

	stage := eventstream.NewRunEvent(eventstream.EventTypeStageCompleted, runID)
	stage.Stage = manifest.StageRetrieve
	stage.DurationMs = finishedAt.Sub(started).Milliseconds()
	stack.Publish(ctx, events, log, stage)

	resultsPath := report.RetrievalResultsPath(cfg.Results.Dir, runID)
	if err := report.WriteJSON(resultsPath, report.NewRetrievalResults(runID, int(cfg.Benchmark.TopN), results)); err != nil {
		return fmt.Errorf("writing retrieval results: %w", err)
	}

	elapsed := time.Since(started)

	mft.Finalize()
	if err := report.WriteJSON(report.PipelineManifestPath(cfg.Results.Dir, runID), mft); err != nil {
		return fmt.Errorf("writing pipeline manifest: %w", err)
	}

	finished := eventstream.NewRunEvent(eventstream.EventTypeRunFinished, runID)
	finished.DurationMs = elapsed.Milliseconds()
	stack.Publish(ctx, events, log, finished)

	log.Info("retrieval run finished",
		zap.String("run_id", runID),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("queries", summary.Queries),
		zap.Duration("elapsed", elapsed),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s Retrieval %s finished %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(runID),
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(elapsed))),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "  conversations  %d completed, %d failed, %d skipped\n",
		summary.Completed, summary.Failed, summary.Skipped)
	fmt.Fprintf(cmd.OutOrStdout(), "  queries        %d answered, %d failed\n",
		summary.Queries, summary.QueryFailures)
	fmt.Fprintf(cmd.OutOrStdout(), "  results        %s\n", cliui.DimStyle.Render(resultsPath))

	return nil
}
