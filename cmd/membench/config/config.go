// Package configcmder provides the config command for managing persistent
// membench configuration stored in the .membench/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent membench configuration.

Configuration is stored as config.toml in the .membench/ directory and
provides default values for command flags. CLI flags always take
precedence over config file values, and MEMBENCH_ environment variables
sit between the two.

Keys use dotted notation matching the TOML section structure:
  benchmark.workers, benchmark.top_n, benchmark.cutoffs,
  memory.provider, memory.dir,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  llm.provider, llm.endpoint, llm.model,
  results.dir, archive.provider, archive.target,
  events.provider, events.brokers, events.topic,
  api.listen, log.dir

Use subcommands to get, set, or list configuration values:
  membench config set <key> <value>    Set a configuration value
  membench config get <key>            Get a configuration value
  membench config list                 List all configuration values

Examples:
  membench config set benchmark.workers 4
  membench config set embedding.model embeddinggemma
  membench config set llm.api_key
  membench config get memory.dir
  membench config list`

const configShortDesc string = "Manage persistent membench configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
