// Package runcmder provides the run command for one-shot streaming runs.
package runcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/cliui"
	"github.com/papercomputeco/reel/pkg/config"
	publishutils "github.com/papercomputeco/reel/pkg/eventstream/utils"
	"github.com/papercomputeco/reel/pkg/logger"
	"github.com/papercomputeco/reel/stream"
)

const runLongDesc string = `Run one prompt against the backend and stream the response.

Partial text chunks print to stdout as they arrive; the final event
ends the run. With --json, every decoded event prints as one JSON
line instead, ready for jq.

A session is created when --session is not given. Its ID prints to
stderr so the transcript can be picked up later with the sessions
commands or chat --resume.

Examples:
  reel run "What's the weather in Oslo?"
  reel run --app weather-agent "And tomorrow?"
  reel run --session 4f7ec0ab "Keep going"
  reel run --json "plan my day" | jq .
  reel run --publish-provider kafka "hello"`

const runShortDesc string = "Run one prompt and stream the response"

type runCommander struct {
	backendURL      string
	app             string
	userID          string
	sessionID       string
	publishProvider string
	topic           string
	brokers         []string
	jsonOut         bool
	debug           bool
}

func NewRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: runShortDesc,
		Long:  runLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagBackendURL,
				config.FlagApp,
				config.FlagUserID,
				config.FlagPublishProvider,
				config.FlagTopic,
			})

			cmder.backendURL = v.GetString("backend.url")
			cmder.app = v.GetString("backend.app")
			cmder.userID = v.GetString("backend.user_id")
			cmder.publishProvider = v.GetString("publish.provider")
			cmder.topic = v.GetString("publish.topic")
			cmder.brokers = v.GetStringSlice("publish.brokers")

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.debug, _ = cmd.Flags().GetBool("debug")
			return cmder.run(cmd.Context(), args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagBackendURL, &cmder.backendURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagApp, &cmder.app)
	config.AddStringFlag(cmd, config.Flags, config.FlagUserID, &cmder.userID)
	config.AddStringFlag(cmd, config.Flags, config.FlagPublishProvider, &cmder.publishProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagTopic, &cmder.topic)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Existing session ID to continue")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print each event as one JSON line")

	return cmd
}

func (c *runCommander) run(ctx context.Context, prompt string) error {
	if c.app == "" {
		return fmt.Errorf("no app selected; pass --app or run: reel apps select <app>")
	}

	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithWriter(os.Stderr),
		logger.WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
	)

	client := agent.NewClient(agent.Config{BaseURL: c.backendURL})

	sessionID := c.sessionID
	if sessionID == "" {
		created, err := client.CreateSession(ctx, c.app, c.userID)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		sessionID = created
	}
	fmt.Fprintf(os.Stderr, "%s %s\n",
		cliui.KeyStyle.Render("session"),
		cliui.IDStyle.Render(sessionID),
	)

	publisher, err := publishutils.NewPublisher(&publishutils.NewPublisherOpts{
		ProviderType: c.publishProvider,
		Brokers:      c.brokers,
		Topic:        c.topic,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer publisher.Close()

	streamer, err := stream.NewClient(stream.Config{
		Opener:    client,
		Logger:    log,
		Publisher: publisher,
		Backend:   c.backendURL,
	})
	if err != nil {
		return err
	}

	req := agent.RunRequest{
		AppName:    c.app,
		UserID:     c.userID,
		SessionID:  sessionID,
		NewMessage: agent.UserMessage(prompt),
		Streaming:  true,
	}

	var (
		runErr   error
		warnings int
		streamed bool
	)

	handler := stream.Handler{
		OnEvent: func(ev *agent.Event) {
			if c.jsonOut {
				if err := json.NewEncoder(os.Stdout).Encode(ev); err != nil {
					log.Error("could not encode event", "error", err)
				}
				return
			}

			text := ev.Text()
			if ev.Partial {
				if text != "" {
					fmt.Print(text)
					streamed = true
				}
				return
			}

			// A non-partial event carries the whole reply, so its text is
			// redundant once partial chunks were printed.
			if streamed {
				fmt.Println()
				streamed = false
			} else if text != "" {
				fmt.Println(text)
			}
		},
		OnWarning: func(perr *agent.ParseError) {
			warnings++
		},
		OnError: func(err error) {
			runErr = err
		},
	}

	sub := streamer.Start(ctx, req, handler)
	<-sub.Done()

	if warnings > 0 {
		fmt.Fprintf(os.Stderr, "%s %d malformed payloads skipped\n",
			cliui.WarnStyle.Render("!"), warnings)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	return nil
}
