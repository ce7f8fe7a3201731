// Package configcmder provides the config command for managing persistent
// ispoc configuration stored in the .ispoc/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/ispoc/pkg/cliui"
	"github.com/papercomputeco/ispoc/pkg/config"
)

const configLongDesc string = `Manage persistent ispoc configuration.

Configuration is stored as config.toml in the .ispoc/ directory and provides
default values for command flags. CLI flags and ISPOC_ environment variables
take precedence over config file values. Secrets such as OPENAI_API_KEY and
ISPOC_ADMIN_TOKEN are only read from the environment.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.redis_url, storage.redis_prefix,
  proxy.upstream, proxy.listen, proxy.model, proxy.instructions_path,
  proxy.vector_store_id,
  api.listen, api.cors_origins,
  client.proxy_target, client.api_target,
  worker.workers, worker.queue_size,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  ispoc config set <key> <value>    Set a configuration value
  ispoc config get <key>            Get a configuration value
  ispoc config list                 List all configuration values

Examples:
  ispoc config set proxy.vector_store_id vs_abc123
  ispoc config set storage.driver redis
  ispoc config get proxy.model
  ispoc config list`

const configShortDesc string = "Manage persistent ispoc configuration"

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

func validateKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func printTarget(w io.Writer, cfger *config.Configer) {
	target := cfger.GetTarget()
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
