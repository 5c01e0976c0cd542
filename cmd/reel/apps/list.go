package appscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
)

const listLongDesc string = `List the apps served by the backend.

The currently selected app (backend.app in the config) is marked.

Examples:
  reel apps list
  reel apps list --backend http://localhost:8000`

const listShortDesc string = "List apps served by the backend"

type listCommander struct {
	backendURL string
	app        string
}

func newListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagBackendURL,
			})

			cmder.backendURL = v.GetString("backend.url")
			cmder.app = v.GetString("backend.app")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBackendURL, &cmder.backendURL)

	return cmd
}

func (c *listCommander) run(ctx context.Context) error {
	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})

	apps, err := client.ListApps(ctx)
	if err != nil {
		return fmt.Errorf("listing apps: %w", err)
	}

	fmt.Printf("\n  %s %s\n\n",
		cliui.KeyStyle.Render("Backend:"),
		cliui.ValueStyle.Render(c.backendURL),
	)

	if len(apps) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No apps served."))
		return nil
	}

	for _, app := range apps {
		if app == c.app {
			fmt.Printf("  %s %s %s\n",
				cliui.SuccessMark,
				cliui.NameStyle.Render(app),
				cliui.DimStyle.Render("(selected)"),
			)
		} else {
			fmt.Printf("    %s\n", cliui.ValueStyle.Render(app))
		}
	}
	fmt.Println()

	return nil
}
