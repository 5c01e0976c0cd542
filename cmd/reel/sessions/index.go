package sessionscmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/search"
)

const indexLongDesc string = `Index local transcripts for semantic search.

Embeds every stored event that has text through the configured
embedding provider and writes the vectors to the vector store.
Re-running is safe: existing entries are overwritten.

Requires a running embedding provider. The default is Ollama at
http://localhost:11434 with the embeddinggemma model:
  ollama pull embeddinggemma

Examples:
  reel sessions index
  reel sessions index --app weather-agent
  reel sessions index --vector-store-provider qdrant --vector-store-target localhost:6334`

type indexCommander struct {
	deps   searchDeps
	app    string
	userID string
	debug  bool
}

func newIndexCmd() *cobra.Command {
	cmder := indexCommander{}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index local transcripts for semantic search",
		Long:  indexLongDesc,
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
			cmder.deps.bind(v, cmd)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return err
			}
			cmder.debug = debug

			return cmder.run(cmd.Context())
		},
	}

	cmder.deps.registerFlags(cmd)
	cmd.Flags().StringVar(&cmder.app, "app", "", "Only index sessions for this app")
	cmd.Flags().StringVar(&cmder.userID, "user", "", "Only index sessions for this user")

	return cmd
}

func (c *indexCommander) run(ctx context.Context) error {
	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithWriter(os.Stderr),
		logger.WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
	)

	storer, embedder, vectorDriver, err := c.deps.open(ctx, log)
	if err != nil {
		return err
	}
	defer storer.Close()
	defer embedder.Close()
	defer vectorDriver.Close()

	indexer := search.NewIndexer(embedder, vectorDriver, storer, log)

	var result *search.IndexResult
	err = cliui.Step(os.Stdout, "Indexing transcripts", func() error {
		var runErr error
		result, runErr = indexer.Run(ctx, c.app, c.userID)
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%s\n", result.Summary())

	return nil
}
