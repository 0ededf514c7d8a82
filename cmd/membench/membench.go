// Package membenchcmder
package membenchcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/membench/cmd/membench/config"
	deckcmder "github.com/papercomputeco/membench/cmd/membench/deck"
	evaluatecmder "github.com/papercomputeco/membench/cmd/membench/evaluate"
	indexcmder "github.com/papercomputeco/membench/cmd/membench/index"
	querycmder "github.com/papercomputeco/membench/cmd/membench/query"
	retrievecmder "github.com/papercomputeco/membench/cmd/membench/retrieve"
	runcmder "github.com/papercomputeco/membench/cmd/membench/run"
	runscmder "github.com/papercomputeco/membench/cmd/membench/runs"
	servecmder "github.com/papercomputeco/membench/cmd/membench/serve"
	versioncmder "github.com/papercomputeco/membench/cmd/version"
)

const membenchLongDesc string = `Membench benchmarks long-term conversational memory systems.

Run the full pipeline using:
  membench run --dataset locomo.json    Index, retrieve and evaluate a dataset

Or drive the stages one at a time:
  membench index     Build memory indexes from conversations
  membench retrieve  Run retrieval queries against built indexes
  membench evaluate  Score retrieval results against gold evidence`

const membenchShortDesc string = "Membench - Conversational Memory Benchmarks"

func NewMembenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "membench",
		Short: membenchShortDesc,
		Long:  membenchLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .membench/ config directory")

	// Add subcommands
	cmd.AddCommand(runcmder.NewRunCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(retrievecmder.NewRetrieveCmd())
	cmd.AddCommand(evaluatecmder.NewEvaluateCmd())
	cmd.AddCommand(querycmder.NewQueryCmd())
	cmd.AddCommand(runscmder.NewRunsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(deckcmder.NewDeckCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
