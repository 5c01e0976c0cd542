// Package appscmder provides the apps command for listing and selecting
// agent apps on the backend.
package appscmder

import (
	"github.com/spf13/cobra"
)

const appsLongDesc string = `List and select agent apps on the backend.

The backend serves one or more named apps. Chat and run target the
selected app; use these subcommands to see what is available and to
pick a default.

Examples:
  reel apps list
  reel apps select weather-agent`

const appsShortDesc string = "List and select backend apps"

func NewAppsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: appsShortDesc,
		Long:  appsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSelectCmd())

	return cmd
}
