package sessionscmder

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/search"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	roleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	matchedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	branchStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const searchLongDesc string = `Search local transcripts semantically.

Embeds the query with the configured embedding provider and looks up
the nearest stored events in the vector store. Run reel sessions index
first to populate it.

For each result the surrounding conversation is displayed, with the
matched turn highlighted.

Use --quiet to output only session IDs, one per line. This is useful
for piping into other commands.

Examples:
  reel sessions search "kafka retries"
  reel sessions search "error handling" --top 10
  reel sessions search "deploy steps" --quiet`

const searchShortDesc string = "Search local transcripts semantically"

type searchCommander struct {
	deps  searchDeps
	query string
	topK  int
	quiet bool
	debug bool
}

func newSearchCmd() *cobra.Command {
	cmder := searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
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
			cmder.deps.bind(v, cmd)

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = args[0]

			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return err
			}
			cmder.debug = debug

			return cmder.run(cmd.Context())
		},
	}

	cmder.deps.registerFlags(cmd)
	cmd.Flags().IntVarP(&cmder.topK, "top", "k", 5, "Number of results to return")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Output only session IDs, one per line (for piping)")

	return cmd
}

func (c *searchCommander) run(ctx context.Context) error {
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

	output, err := search.Search(ctx, c.query, c.topK, embedder, vectorDriver, storer, log)
	if err != nil {
		return err
	}

	if output.Count == 0 {
		if !c.quiet {
			fmt.Println("No results found.")
		}
		return nil
	}

	if c.quiet {
		for _, result := range output.Results {
			fmt.Println(result.SessionID)
		}
		return nil
	}

	fmt.Printf("\n%s %s\n\n",
		headerStyle.Render("Search Results for:"),
		idStyle.Render(fmt.Sprintf("%q", output.Query)),
	)

	for i, result := range output.Results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result search.SearchResult) {
	fmt.Printf("  %s  %s  %s\n",
		rankStyle.Render(fmt.Sprintf("#%d", rank)),
		scoreStyle.Render(fmt.Sprintf("score: %.4f", result.Score)),
		idStyle.Render(result.EventID),
	)

	if result.Turns == 0 {
		fmt.Printf("  %s\n\n", dimStyle.Render("(no transcript found)"))
		return
	}

	preview := result.Preview
	if len(preview) > 80 {
		preview = preview[:77] + "..."
	}
	preview = strings.ReplaceAll(preview, "\n", " ")

	fmt.Printf("  %s %s\n", roleStyle.Render(result.Role+":"), previewStyle.Render(preview))
	fmt.Printf("  %s\n", dimStyle.Render(fmt.Sprintf("%d turns in %s", result.Turns, shortID(result.SessionID))))

	for _, turn := range result.Transcript {
		text := turn.Text
		if text == "" {
			text = "(no text content)"
		}
		if len(text) > 60 {
			text = text[:57] + "..."
		}
		text = strings.ReplaceAll(text, "\n", " ")

		if turn.Matched {
			fmt.Printf("  %s %s %s %s\n",
				matchedStyle.Render(">>>"),
				roleStyle.Render("["+turn.Role+"]"),
				previewStyle.Render(text),
				dimStyle.Render(shortID(turn.EventID)),
			)
		} else {
			fmt.Printf("  %s %s %s %s\n",
				branchStyle.Render(" ├─"),
				roleStyle.Render("["+turn.Role+"]"),
				branchStyle.Render(text),
				dimStyle.Render(shortID(turn.EventID)),
			)
		}
	}

	fmt.Println()
}

// shortID truncates an ID for display in transcript rows.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
