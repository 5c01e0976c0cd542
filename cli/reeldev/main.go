package main

import (
	"os"

	servecmder "github.com/papercomputeco/reel/cmd/reel/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()
	cmd.Use = "reeldev"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing config.toml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
