// Package configcmder provides the config command for managing persistent
// reel configuration stored in the .reel/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent reel configuration.

Configuration is stored as config.toml in the .reel/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values, and REEL_* environment variables sit between the two.

Keys use dotted notation matching the TOML section structure:
  backend.url, backend.app, backend.user_id,
  store.driver, store.sqlite_path, store.dsn,
  serve.listen, serve.script_path, serve.agent_url,
  publish.provider, publish.brokers, publish.topic,
  vector_store.provider, vector_store.target,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions

Use subcommands to get, set, or list configuration values:
  reel config set <key> <value>    Set a configuration value
  reel config get <key>            Get a configuration value
  reel config list                 List all configuration values

Examples:
  reel config set backend.url http://localhost:8000
  reel config set backend.app weather-agent
  reel config get backend.app
  reel config list`

const configShortDesc string = "Manage persistent reel configuration"

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
