package sessionscmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
)

const showLongDesc string = `Show a session transcript from the backend.

Prints every stored turn with its role and timestamp. Use --json to
dump the raw session instead.

Examples:
  reel sessions show 4f7ec0ab-9d12-4c61-b1a2-03c5f3f8d2aa
  reel sessions show 4f7ec0ab-9d12-4c61-b1a2-03c5f3f8d2aa --json`

type showCommander struct {
	backendURL string
	app        string
	userID     string
	jsonOut    bool
}

func newShowCmd() *cobra.Command {
	cmder := showCommander{}

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session transcript",
		Long:  showLongDesc,
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
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the raw session as JSON")

	return cmd
}

func (c *showCommander) run(ctx context.Context, sessionID string) error {
	if c.app == "" {
		return errors.New("no app selected; pass --app or run: reel apps select <app>")
	}

	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})

	session, err := client.GetSession(ctx, c.app, c.userID, sessionID)
	if err != nil {
		return fmt.Errorf("fetching session %s: %w", sessionID, err)
	}

	if c.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(session)
	}

	fmt.Printf("\n  %s %s\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.IDStyle.Render(session.ID),
	)
	fmt.Printf("  %s %s %s\n",
		cliui.KeyStyle.Render("App:"),
		cliui.NameStyle.Render(session.AppName),
		cliui.DimStyle.Render("("+session.UserID+")"),
	)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Created:"),
		cliui.ValueStyle.Render(session.CreatedAt.Local().Format("2006-01-02 15:04:05")),
	)

	if len(session.Events) == 0 {
		fmt.Printf("  %s\n\n", cliui.DimStyle.Render("No events."))
		return nil
	}

	for _, event := range session.Events {
		fmt.Printf("  %s %s\n",
			cliui.RoleLabel(event.Role),
			cliui.DimStyle.Render(event.Timestamp.Local().Format("15:04:05")),
		)

		text := event.Content.Text()
		if text == "" {
			fmt.Printf("    %s\n\n", cliui.DimStyle.Render("(no text content)"))
			continue
		}
		fmt.Printf("    %s\n\n", strings.ReplaceAll(text, "\n", "\n    "))
	}

	return nil
}
