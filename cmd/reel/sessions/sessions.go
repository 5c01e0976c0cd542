// Package sessionscmder provides the sessions commands for listing,
// inspecting, indexing, and searching agent session transcripts.
package sessionscmder

import (
	"github.com/spf13/cobra"
)

const sessionsLongDesc string = `Work with agent session transcripts.

The list, show, and delete subcommands talk to the backend's session
API. The index, search, and browse subcommands work against the local
transcript store written by chat --save or reel serve.

Examples:
  reel sessions list
  reel sessions show 4f7ec0ab-9d12-4c61-b1a2-03c5f3f8d2aa
  reel sessions delete 4f7ec0ab-9d12-4c61-b1a2-03c5f3f8d2aa
  reel sessions index
  reel sessions search "kafka retries"
  reel sessions browse`

const sessionsShortDesc string = "List, inspect, and search sessions"

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: sessionsShortDesc,
		Long:  sessionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newBrowseCmd())

	return cmd
}
