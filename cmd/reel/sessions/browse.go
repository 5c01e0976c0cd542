package sessionscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	storeutils "github.com/papercomputeco/reel/pkg/store/utils"
)

const browseLongDesc string = `Browse local transcripts in an interactive TUI.

Pick a session from the list to read its transcript. Agent turns are
rendered as markdown.

Keys:
  enter  open the selected session
  esc    back to the session list
  /      filter sessions
  q      quit

Examples:
  reel sessions browse
  reel sessions browse --app weather-agent
  reel sessions browse --sqlite ./reel.db`

type browseCommander struct {
	storeDriver string
	sqlitePath  string
	dsn         string
	app         string
	userID      string
}

func newBrowseCmd() *cobra.Command {
	cmder := browseCommander{}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse local transcripts in a TUI",
		Long:  browseLongDesc,
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
				config.FlagStoreDriver,
				config.FlagSQLite,
				config.FlagDSN,
			})

			cmder.storeDriver = v.GetString("store.driver")
			cmder.sqlitePath = v.GetString("store.sqlite_path")
			cmder.dsn = v.GetString("store.dsn")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagStoreDriver, &cmder.storeDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagDSN, &cmder.dsn)
	cmd.Flags().StringVar(&cmder.app, "app", "", "Only show sessions for this app")
	cmd.Flags().StringVar(&cmder.userID, "user", "", "Only show sessions for this user")

	return cmd
}

func (c *browseCommander) run(ctx context.Context) error {
	storer, err := storeutils.NewDriver(ctx, &storeutils.NewDriverOpts{
		DriverType: c.storeDriver,
		SQLitePath: c.sqlitePath,
		DSN:        c.dsn,
	})
	if err != nil {
		return fmt.Errorf("opening transcript store: %w", err)
	}
	defer storer.Close()

	sessions, err := storer.ListSessions(ctx, c.app, c.userID)
	if err != nil {
		return fmt.Errorf("listing local sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Printf("\n  %s\n\n", cliui.DimStyle.Render("No local sessions. Save some with: reel chat --save"))
		return nil
	}

	return runBrowseTUI(ctx, storer, sessions)
}
