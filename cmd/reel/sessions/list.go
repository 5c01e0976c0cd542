package sessionscmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
)

const listLongDesc string = `List sessions on the backend.

Shows every session the backend holds for the selected app and user,
newest first. Use show to read a transcript.

Examples:
  reel sessions list
  reel sessions list --app weather-agent
  reel sessions list --backend http://localhost:8000`

type listCommander struct {
	backendURL string
	app        string
	userID     string
}

func newListCmd() *cobra.Command {
	cmder := listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions on the backend",
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				return err
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagBackendURL,
				config.FlagApp,
				config.FlagUserID,
			})

			cmder.backendURL = v.GetString("backend.url")
			cmder.app = v.GetString("backend.app")
			cmder.userID = v.GetString("backend.user_id")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBackendURL, &cmder.backendURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagApp, &cmder.app)
	config.AddStringFlag(cmd, config.Flags, config.FlagUserID, &cmder.userID)

	return cmd
}

func (c *listCommander) run(ctx context.Context) error {
	if c.app == "" {
		return errors.New("no app selected; pass --app or run: reel apps select <app>")
	}

	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})

	sessions, err := client.ListSessions(ctx, c.app, c.userID)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	fmt.Printf("\n  %s %s %s\n\n",
		cliui.KeyStyle.Render("Sessions for"),
		cliui.NameStyle.Render(c.app),
		cliui.DimStyle.Render("("+c.userID+")"),
	)

	if len(sessions) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No sessions."))
		return nil
	}

	for _, session := range sessions {
		fmt.Printf("  %s  %s  %s\n",
			cliui.IDStyle.Render(session.ID),
			cliui.DimStyle.Render(session.CreatedAt.Local().Format("2006-01-02 15:04")),
			cliui.ValueStyle.Render(fmt.Sprintf("%d events", session.EventCount)),
		)
	}
	fmt.Println()

	return nil
}
