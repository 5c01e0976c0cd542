// Package reelcmder provides the root reel command.
package reelcmder

import (
	"github.com/spf13/cobra"

	appscmder "github.com/papercomputeco/reel/cmd/reel/apps"
	chatcmder "github.com/papercomputeco/reel/cmd/reel/chat"
	configcmder "github.com/papercomputeco/reel/cmd/reel/config"
	runcmder "github.com/papercomputeco/reel/cmd/reel/run"
	servecmder "github.com/papercomputeco/reel/cmd/reel/serve"
	sessionscmder "github.com/papercomputeco/reel/cmd/reel/sessions"
	versioncmder "github.com/papercomputeco/reel/cmd/version"
)

const reelLongDesc string = `Reel is a streaming client for agent backends.

Talk to a backend using:
  reel chat            Interactive chat with streamed responses
  reel run             One-shot run that prints every event
  reel apps            List and select backend apps

Work with recorded transcripts using:
  reel sessions        List, inspect, index, and search sessions

Run a local backend using:
  reel serve           Serve a scriptable dev backend`

const reelShortDesc string = "Reel - Agent Run Streaming"

func NewReelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reel",
		Short: reelShortDesc,
		Long:  reelLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing config.toml")

	// Add subcommands
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(runcmder.NewRunCmd())
	cmd.AddCommand(appscmder.NewAppsCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
