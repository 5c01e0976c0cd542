package appscmder

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
)

const selectLongDesc string = `Select the default app for chat and run.

Checks the app name against the backend's app list, then writes
backend.app to the config file so later commands default to it.

Examples:
  reel apps select weather-agent
  reel apps select weather-agent --backend http://localhost:8000`

const selectShortDesc string = "Select the default backend app"

type selectCommander struct {
	backendURL string
	configDir  string
}

func newSelectCmd() *cobra.Command {
	cmder := &selectCommander{}

	cmd := &cobra.Command{
		Use:   "select <app>",
		Short: selectShortDesc,
		Long:  selectLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagBackendURL,
			})

			cmder.backendURL = v.GetString("backend.url")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBackendURL, &cmder.backendURL)

	return cmd
}

func (c *selectCommander) run(ctx context.Context, name string) error {
	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})

	apps, err := client.ListApps(ctx)
	if err != nil {
		return fmt.Errorf("listing apps: %w", err)
	}

	if !slices.Contains(apps, name) {
		return fmt.Errorf("app %q not served by %s (have: %s)",
			name, c.backendURL, strings.Join(apps, ", "))
	}

	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue("backend.app", name); err != nil {
		return err
	}

	fmt.Printf("\n  %s Selected app %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(name),
	)

	return nil
}
