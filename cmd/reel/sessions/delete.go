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

const deleteLongDesc string = `Delete a session from the backend.

Removes the session and its events. Local transcripts saved with
chat --save are not touched.

Examples:
  reel sessions delete 4f7ec0ab-9d12-4c61-b1a2-03c5f3f8d2aa`

type deleteCommander struct {
	backendURL string
	app        string
	userID     string
}

func newDeleteCmd() *cobra.Command {
	cmder := deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session from the backend",
		Long:  deleteLongDesc,
		Args:  cobra.ExactArgs(1),
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
			return cmder.run(cmd.Context(), args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBackendURL, &cmder.backendURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagApp, &cmder.app)
	config.AddStringFlag(cmd, config.Flags, config.FlagUserID, &cmder.userID)

	return cmd
}

func (c *deleteCommander) run(ctx context.Context, sessionID string) error {
	if c.app == "" {
		return errors.New("no app selected; pass --app or run: reel apps select <app>")
	}

	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})

	if err := client.DeleteSession(ctx, c.app, c.userID, sessionID); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	fmt.Printf("%s Deleted session %s\n",
		cliui.SuccessMark,
		cliui.IDStyle.Render(sessionID),
	)

	return nil
}
