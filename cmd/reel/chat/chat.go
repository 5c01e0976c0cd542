// Package chatcmder provides the chat command for interactive agent
// sessions over the streaming client.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/dotdir"
	publishutils "github.com/papercomputeco/reel/pkg/eventstream/utils"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/pkg/state"
	"github.com/papercomputeco/reel/pkg/store"
	storeutils "github.com/papercomputeco/reel/pkg/store/utils"
	"github.com/papercomputeco/reel/pkg/utils"
	"github.com/papercomputeco/reel/stream"
)

var (
	userPrompt  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	agentPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("agent> ")
)

// transcriptTail is how many stored events print when resuming a session.
const transcriptTail = 4

const chatLongDesc string = `Start an interactive chat session against the backend.

Each message runs through the streaming client: reply tokens print as
they arrive, and the session transcript lives on the backend. The
session ID is remembered in .reel/session.json so --resume picks up
the previous conversation.

With --save, every completed turn is also mirrored into the local
transcript store, where the sessions commands can index and search it.
With --publish-provider kafka, every delivered event is republished to
the configured topic.

Examples:
  reel chat
  reel chat --app weather-agent
  reel chat --resume
  reel chat --session 4f7ec0ab
  reel chat --save
  reel chat --publish-provider kafka --topic reel-events`

const chatShortDesc string = "Interactive chat with streamed responses"

type chatCommander struct {
	backendURL      string
	app             string
	userID          string
	sessionID       string
	resume          bool
	save            bool
	publishProvider string
	topic           string
	brokers         []string
	storeDriver     string
	sqlitePath      string
	dsn             string
	configDir       string
	debug           bool

	logger  *slog.Logger
	loading *state.Cell[bool]
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagBackendURL,
				config.FlagApp,
				config.FlagUserID,
				config.FlagPublishProvider,
				config.FlagTopic,
				config.FlagStoreDriver,
				config.FlagSQLite,
				config.FlagDSN,
			})

			cmder.backendURL = v.GetString("backend.url")
			cmder.app = v.GetString("backend.app")
			cmder.userID = v.GetString("backend.user_id")
			cmder.publishProvider = v.GetString("publish.provider")
			cmder.topic = v.GetString("publish.topic")
			cmder.brokers = v.GetStringSlice("publish.brokers")
			cmder.storeDriver = v.GetString("store.driver")
			cmder.sqlitePath = v.GetString("store.sqlite_path")
			cmder.dsn = v.GetString("store.dsn")

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBackendURL, &cmder.backendURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagApp, &cmder.app)
	config.AddStringFlag(cmd, config.Flags, config.FlagUserID, &cmder.userID)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublishProvider, &cmder.publishProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreDriver, &cmder.storeDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagDSN, &cmder.dsn)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Existing session ID to continue")
	cmd.Flags().BoolVar(&cmder.resume, "resume", false, "Resume the most recent chat session")
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Mirror completed turns into the local transcript store")

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithWriter(os.Stderr),
		logger.WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
	)

	if c.app == "" {
		return fmt.Errorf("no app selected; pass --app or run: reel apps select <app>")
	}

	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})
	ddm := dotdir.NewManager()

	sessionID, resumed, err := c.establishSession(ctx, client, ddm)
	if err != nil {
		return err
	}

	if err := ddm.SaveLastSession(&dotdir.LastSession{
		AppName:   c.app,
		UserID:    c.userID,
		SessionID: sessionID,
		UpdatedAt: time.Now().UTC(),
	}, c.configDir); err != nil {
		c.logger.Warn("could not save session state", "error", err)
	}

	var mirror store.Driver
	if c.save {
		mirror, err = storeutils.NewDriver(ctx, &storeutils.NewDriverOpts{
			DriverType: c.storeDriver,
			SQLitePath: c.sqlitePath,
			DSN:        c.dsn,
		})
		if err != nil {
			return fmt.Errorf("creating store driver: %w", err)
		}
		defer mirror.Close()

		if err := ensureMirrorSession(ctx, mirror, sessionID, c.app, c.userID, resumed); err != nil {
			return err
		}
	}

	publisher, err := publishutils.NewPublisher(&publishutils.NewPublisherOpts{
		ProviderType: c.publishProvider,
		Brokers:      c.brokers,
		Topic:        c.topic,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer publisher.Close()

	c.loading = state.NewCell(false)

	streamer, err := stream.NewClient(stream.Config{
		Opener:    client,
		Loading:   c.loading,
		Logger:    c.logger,
		Publisher: publisher,
		Backend:   c.backendURL,
	})
	if err != nil {
		return err
	}

	c.printBanner(sessionID, resumed)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		reply, err := c.streamTurn(ctx, streamer, sessionID, input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s %v\n", cliui.FailMark, err)
			continue
		}

		if mirror != nil {
			if err := mirrorTurn(ctx, mirror, sessionID, input, reply); err != nil {
				c.logger.Warn("could not mirror turn", "error", err)
			}
		}

		fmt.Println()
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println()
	return nil
}

// establishSession picks the backend session this chat talks to: an
// explicit --session, the remembered session on --resume, or a freshly
// created one. The resumed session comes back with its events so the
// banner can replay the tail of the transcript.
func (c *chatCommander) establishSession(ctx context.Context, client *agent.Client, ddm *dotdir.Manager) (string, *agent.Session, error) {
	if c.sessionID != "" {
		session, err := client.GetSession(ctx, c.app, c.userID, c.sessionID)
		if err != nil {
			return "", nil, fmt.Errorf("resuming session %s: %w", c.sessionID, err)
		}
		return c.sessionID, session, nil
	}

	if c.resume {
		last, err := ddm.LoadLastSession(c.configDir)
		if err != nil {
			return "", nil, err
		}

		if last != nil && last.SessionID != "" {
			session, err := client.GetSession(ctx, last.AppName, last.UserID, last.SessionID)
			if err == nil {
				c.app = last.AppName
				c.userID = last.UserID
				return last.SessionID, session, nil
			}
			fmt.Fprintf(os.Stderr, "  %s %s\n",
				cliui.FailMark,
				cliui.DimStyle.Render("Could not resume last session; starting fresh."),
			)
		}
	}

	created, err := client.CreateSession(ctx, c.app, c.userID)
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}

	return created, nil, nil
}

func (c *chatCommander) printBanner(sessionID string, resumed *agent.Session) {
	fmt.Println()
	if resumed != nil {
		fmt.Printf("  %s Resuming session %s %s\n",
			cliui.SuccessMark,
			cliui.IDStyle.Render(utils.Truncate(sessionID, 12)),
			cliui.DimStyle.Render(fmt.Sprintf("(%d events)", len(resumed.Events))),
		)
		for _, ev := range transcriptEnd(resumed.Events, transcriptTail) {
			fmt.Printf("    %s %s\n",
				cliui.RoleLabel(ev.Role),
				cliui.PreviewStyle.Render(utils.Truncate(ev.Content.Text(), 70)),
			)
		}
	} else {
		fmt.Printf("  %s New session %s\n",
			cliui.DimStyle.Render("●"),
			cliui.IDStyle.Render(utils.Truncate(sessionID, 12)),
		)
	}

	fmt.Printf("  %s %s\n",
		cliui.KeyStyle.Render("App:"),
		cliui.NameStyle.Render(c.app),
	)
	fmt.Printf("  %s %s\n\n",
		cliui.KeyStyle.Render("Backend:"),
		cliui.ValueStyle.Render(c.backendURL),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))
}

// streamTurn sends one user turn through the streaming client and prints
// the reply as it arrives. It returns the full reply text once the run
// completes.
func (c *chatCommander) streamTurn(ctx context.Context, streamer *stream.Client, sessionID, input string) (string, error) {
	req := agent.RunRequest{
		AppName:    c.app,
		UserID:     c.userID,
		SessionID:  sessionID,
		NewMessage: agent.UserMessage(input),
		Streaming:  true,
	}

	updates := make(chan string, 16)
	finals := make(chan *agent.Event, 1)
	errs := make(chan error, 1)

	handler := stream.Handler{
		OnEvent: func(ev *agent.Event) {
			if ev.Partial {
				if text := ev.Text(); text != "" {
					updates <- text
				}
				return
			}

			// Keep the latest non-partial event; it carries the whole
			// reply.
			select {
			case <-finals:
			default:
			}
			finals <- ev
		},
		OnError: func(err error) {
			errs <- err
		},
	}

	sub := streamer.Start(ctx, req, handler)

	var (
		full    strings.Builder
		started bool
		frame   int
	)

	printToken := func(text string) {
		if !started {
			clearSpinnerLine()
			fmt.Print(agentPrompt)
			started = true
		}
		fmt.Print(text)
		full.WriteString(text)
	}

	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case text := <-updates:
			printToken(text)
		case <-ticker.C:
			if !started && c.loading.Get() {
				fmt.Printf("\r  %s %s", cliui.SpinnerFrame(frame), cliui.DimStyle.Render("thinking"))
				frame++
			}
		case <-sub.Done():
			break loop
		}
	}

	// Tokens can land between the last delivery and Done closing.
drain:
	for {
		select {
		case text := <-updates:
			printToken(text)
		default:
			break drain
		}
	}

	if !started {
		clearSpinnerLine()
	}

	select {
	case err := <-errs:
		return "", err
	default:
	}

	reply := full.String()

	select {
	case final := <-finals:
		if text := final.Text(); text != "" {
			if reply == "" {
				// Nothing streamed, so render the whole reply at once.
				fmt.Print(agentPrompt)
				if rendered, err := cliui.RenderMarkdown(text); err == nil {
					fmt.Print("\n" + strings.TrimRight(rendered, "\n"))
				} else {
					fmt.Print(text)
				}
			}
			reply = text
		}
	default:
	}

	return reply, nil
}

// clearSpinnerLine erases the in-flight spinner so reply output starts
// on a clean line.
func clearSpinnerLine() {
	width := ansi.StringWidth(fmt.Sprintf("  %s %s", cliui.SpinnerFrame(0), cliui.DimStyle.Render("thinking")))
	fmt.Print("\r" + strings.Repeat(" ", width) + "\r")
}

// transcriptEnd returns the last n events of a transcript.
func transcriptEnd(events []agent.SessionEvent, n int) []agent.SessionEvent {
	if len(events) <= n {
		return events
	}
	return events[len(events)-n:]
}

// ensureMirrorSession creates the local copy of the backend session,
// backfilling events fetched on resume so the local transcript starts
// complete.
func ensureMirrorSession(ctx context.Context, mirror store.Driver, sessionID, appName, userID string, resumed *agent.Session) error {
	_, err := mirror.GetSession(ctx, sessionID)
	if err == nil {
		return nil
	}

	var nf store.NotFoundError
	if !errors.As(err, &nf) {
		return fmt.Errorf("checking local session: %w", err)
	}

	session := &agent.Session{
		ID:        sessionID,
		AppName:   appName,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		State:     map[string]any{},
	}
	if resumed != nil {
		session.CreatedAt = resumed.CreatedAt
	}

	if err := mirror.CreateSession(ctx, session); err != nil {
		return fmt.Errorf("creating local session: %w", err)
	}

	if resumed != nil {
		for i := range resumed.Events {
			if err := mirror.AppendEvent(ctx, sessionID, &resumed.Events[i]); err != nil {
				return fmt.Errorf("backfilling local session: %w", err)
			}
		}
	}

	return nil
}

// mirrorTurn appends the user and agent halves of a completed turn to
// the local transcript store.
func mirrorTurn(ctx context.Context, mirror store.Driver, sessionID, prompt, reply string) error {
	userEvent := &agent.SessionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      agent.EventTypeUserMessage,
		Role:      agent.RoleUser,
		Content:   agent.UserMessage(prompt),
		SessionID: sessionID,
	}
	if err := mirror.AppendEvent(ctx, sessionID, userEvent); err != nil {
		return fmt.Errorf("storing user message: %w", err)
	}

	agentEvent := &agent.SessionEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      agent.EventTypeAgentResponse,
		Role:      agent.RoleAssistant,
		Content:   agent.Content{Role: agent.RoleAssistant, Parts: []agent.Part{{Text: reply}}},
		SessionID: sessionID,
	}
	if err := mirror.AppendEvent(ctx, sessionID, agentEvent); err != nil {
		return fmt.Errorf("storing agent response: %w", err)
	}

	return nil
}
