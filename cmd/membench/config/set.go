package configcmder

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/membench/pkg/cliui"
	"github.com/papercomputeco/membench/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .membench/ directory. Keys use dotted notation matching
the TOML section structure.

Credential keys (embedding.api_key, llm.api_key) can be set without a
value argument; the value is then prompted with hidden input.

Examples:
  membench config set benchmark.workers 4
  membench config set embedding.target http://localhost:11434
  membench config set llm.api_key`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> [value]",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			key := args[0]
			if len(args) == 2 {
				return runSet(key, args[1], configDir)
			}

			value, err := promptSecret(key)
			if err != nil {
				return err
			}

			return runSet(key, value, configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	return cmd
}

// promptSecret reads a credential value with terminal echo disabled.
// Only secret keys may omit the value argument.
func promptSecret(key string) (string, error) {
	if !config.IsSecretKey(key) {
		return "", fmt.Errorf("key %q requires a value argument", key)
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("cannot prompt for %q: stdin is not a terminal", key)
	}

	fmt.Printf("  Enter value for %s: ", cliui.KeyStyle.Render(key))
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading hidden input: %w", err)
	}

	return string(raw), nil
}

func runSet(key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if target != "" {
		fmt.Printf("\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}

	err = cfger.SetConfigValue(key, value)
	if err != nil {
		return err
	}

	fmt.Printf("  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(displayValue(key, value)),
	)
	return nil
}

// displayValue masks credential values in command output.
func displayValue(key, value string) string {
	if value != "" && config.IsSecretKey(key) {
		return "***"
	}
	return value
}
