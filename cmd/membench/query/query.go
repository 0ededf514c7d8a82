// Package querycmder provides the `membench query` CLI command.
package querycmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/membench/cmd/membench/stack"
	"github.com/papercomputeco/membench/pkg/cliui"
	"github.com/papercomputeco/membench/pkg/config"
	"github.com/papercomputeco/membench/pkg/logger"
	"github.com/papercomputeco/membench/pkg/utils"
)

const queryLongDesc string = `Query one conversation's memory index directly.

Runs an ad-hoc retrieval query against a built index and prints the
matched units with their scores. Fails when the conversation's index
has no completion marker; run membench index first.

Examples:
  membench query --conversation conv_12 "where did Melanie go camping"
  membench query -c conv_12 --top-n 5 "favorite painting subject"`

const queryShortDesc string = "Query one conversation's memory index"

var queryFlagKeys = []string{
	config.FlagTopN,
	config.FlagMemoryProvider,
	config.FlagMemoryDir,
	config.FlagVectorProvider,
	config.FlagVectorTarget,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

type queryCommander struct {
	conversation string
	debug        bool

	topN           uint
	memoryProvider string
	memoryDir      string
	vectorProvider string
	vectorTarget   string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
}

// NewQueryCmd creates the query cobra command.
func NewQueryCmd() *cobra.Command {
	cmder := &queryCommander{}

	cmd := &cobra.Command{
		Use:   "query <text>...",
		Short: queryShortDesc,
		Long:  queryLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.conversation, "conversation", "c", "", "Conversation id whose index to query")
	_ = cmd.MarkFlagRequired("conversation")

	config.AddUintFlag(cmd, config.Flags, config.FlagTopN, &cmder.topN)
	config.AddStringFlag(cmd, config.Flags, config.FlagMemoryProvider, &cmder.memoryProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagMemoryDir, &cmder.memoryDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorProvider, &cmder.vectorProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorTarget, &cmder.vectorTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDims)

	return cmd
}

func (c *queryCommander) run(ctx context.Context, cmd *cobra.Command, text string) error {
	cfg, err := stack.LoadConfig(cmd, queryFlagKeys)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.NewLogger(c.debug)
	defer log.Sync()

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

	matches, err := adapter.Query(ctx, c.conversation, text, int(cfg.Benchmark.TopN))
	if err != nil {
		return fmt.Errorf("querying %s: %w", c.conversation, err)
	}

	out := cmd.OutOrStdout()

	if len(matches) == 0 {
		fmt.Fprintf(out, "%s\n", cliui.DimStyle.Render("no matches"))
		return nil
	}

	for i, match := range matches {
		fmt.Fprintf(out, "%s %s %s\n",
			cliui.DimStyle.Render(fmt.Sprintf("%2d.", i+1)),
			cliui.KeyStyle.Render(fmt.Sprintf("%.4f", match.Score)),
			cliui.ValueStyle.Render(utils.Truncate(match.Content, 160)),
		)

		if len(match.Keywords) > 0 {
			fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(strings.Join(match.Keywords, ", ")))
		}
	}

	return nil
}
