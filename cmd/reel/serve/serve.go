// Package servecmder provides the serve command for running the local
// dev backend.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/reel/devserver"
	"github.com/papercomputeco/reel/pkg/config"
	"github.com/papercomputeco/reel/pkg/logger"
	storeutils "github.com/papercomputeco/reel/pkg/store/utils"
)

const serveLongDesc string = `Serve a local agent backend for development.

The dev backend speaks the same HTTP and SSE surface as a real agent
backend: sessions, streaming runs, eval sets, artifacts, and debug
traces. Replies come from a TOML script of canned turns, or fall back
to echoing the prompt. Transcripts land in the configured store so the
sessions commands work against them.

Examples:
  reel serve
  reel serve --listen :9000
  reel serve --script ./replies.toml --watch
  reel serve --store-driver inmemory
  reel serve --apps weather-agent,support-agent`

const serveShortDesc string = "Serve a scriptable dev backend"

type serveCommander struct {
	listen      string
	scriptPath  string
	agentURL    string
	storeDriver string
	sqlitePath  string
	dsn         string
	apps        []string
	logFile     string
	watch       bool
	debug       bool
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagListen,
				config.FlagScript,
				config.FlagAgentURL,
				config.FlagStoreDriver,
				config.FlagSQLite,
				config.FlagDSN,
			})

			cmder.listen = v.GetString("serve.listen")
			cmder.scriptPath = v.GetString("serve.script_path")
			cmder.agentURL = v.GetString("serve.agent_url")
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

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagScript, &cmder.scriptPath)
	config.AddStringFlag(cmd, config.Flags, config.FlagAgentURL, &cmder.agentURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagStoreDriver, &cmder.storeDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagDSN, &cmder.dsn)
	cmd.Flags().StringSliceVar(&cmder.apps, "apps", nil, "App names the server advertises (comma separated)")
	cmd.Flags().BoolVar(&cmder.watch, "watch", false, "Reload the reply script when it changes on disk")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	log := logger.New(
		logger.WithDebug(c.debug),
		logger.WithWriter(os.Stderr),
		logger.WithPretty(term.IsTerminal(int(os.Stderr.Fd()))),
	)

	if c.logFile != "" {
		file, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer file.Close()

		log = logger.Multi(log, logger.New(
			logger.WithDebug(c.debug),
			logger.WithJSON(true),
			logger.WithSource(c.debug),
			logger.WithWriter(file),
		))
	}

	storer, err := storeutils.NewDriver(ctx, &storeutils.NewDriverOpts{
		DriverType: c.storeDriver,
		SQLitePath: c.sqlitePath,
		DSN:        c.dsn,
	})
	if err != nil {
		return fmt.Errorf("creating store driver: %w", err)
	}
	defer storer.Close()

	server, err := devserver.NewServer(devserver.Config{
		ListenAddr: c.listen,
		AgentURL:   c.agentURL,
		Apps:       c.apps,
		ScriptPath: c.scriptPath,
	}, storer, log)
	if err != nil {
		return fmt.Errorf("creating dev server: %w", err)
	}

	errChan := make(chan error, 2)

	go func() {
		errChan <- server.Run()
	}()

	if c.watch && server.Script() != nil {
		watchCtx, cancelWatch := context.WithCancel(ctx)
		defer cancelWatch()

		go func() {
			err := server.Script().Watch(watchCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Warn("script watcher stopped", "error", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())
		return server.Shutdown()
	}
}
