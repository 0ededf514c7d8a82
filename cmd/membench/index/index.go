// Package indexcmder provides the `membench index` CLI command.
package indexcmder

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
	"github.com/papercomputeco/membench/pkg/indexer"
	"github.com/papercomputeco/membench/pkg/logger"
	"github.com/papercomputeco/membench/pkg/manifest"
	"github.com/papercomputeco/membench/pkg/report"
)

const indexLongDesc string = `Build memory indexes from a dataset's conversations.

Extracts every session into dialogue units and inserts them into the
memory backend. Conversations whose index already carries a completion
marker are skipped unless --rebuild is set.

Examples:
  membench index --dataset locomo.json
  membench index --dataset locomo.json --workers 4
  membench index --dataset locomo.json --rebuild`

const indexShortDesc string = "Build memory indexes from conversations"

var indexFlagKeys = []string{
	config.FlagWorkers,
	config.FlagConsolidateEvery,
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
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagLogDir,
}

type indexCommander struct {
	dataset string
	rebuild bool
	debug   bool

	workers          uint
	consolidateEvery uint
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
	eventsProvider   string
	eventsBrokers    string
	eventsTopic      string
	logDir           string
}

// NewIndexCmd creates the index cobra command.
func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: indexShortDesc,
		Long:  indexLongDesc,
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
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsTopic, &cmder.eventsTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogDir, &cmder.logDir)

	return cmd
}

func (c *indexCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := stack.LoadConfig(cmd, indexFlagKeys)
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

	log.Info("starting index run",
		zap.String("run_id", runID),
		zap.String("dataset", c.dataset),
		zap.Int("conversations", len(conversations)),
		zap.Bool("rebuild", c.rebuild),
	)

	stack.Publish(ctx, events, log, eventstream.NewRunEvent(eventstream.EventTypeRunStarted, runID))

	started := time.Now()

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

	summary := ix.Run(stageCtx, conversations)
	finishedAt := time.Now()
	mft.RecordStage(manifest.StageIndex, started, finishedAt)

	stage := eventstream.NewRunEvent(eventstream.EventTypeStageCompleted, runID)
	stage.Stage = manifest.StageIndex
	stage.DurationMs = finishedAt.Sub(started).Milliseconds()
	stack.Publish(ctx, events, log, stage)

	elapsed := time.Since(started)

	mft.Finalize()
	if err := report.WriteJSON(report.PipelineManifestPath(cfg.Results.Dir, runID), mft); err != nil {
		return fmt.Errorf("writing pipeline manifest: %w", err)
	}

	finished := eventstream.NewRunEvent(eventstream.EventTypeRunFinished, runID)
	finished.DurationMs = elapsed.Milliseconds()
	stack.Publish(ctx, events, log, finished)

	log.Info("index run finished",
		zap.String("run_id", runID),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("units", summary.Units),
		zap.Duration("elapsed", elapsed),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "\n%s Index %s finished %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(runID),
		cliui.StepStyle.Render(fmt.Sprintf("(%s)", cliui.FormatDuration(elapsed))),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "  indexed  %d completed, %d failed, %d skipped, %d units\n",
		summary.Completed, summary.Failed, summary.Skipped, summary.Units)

	return nil
}
