package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"vibe/internal/agent"
	"vibe/internal/config"
	"vibe/internal/i18n"
	"vibe/internal/keybind"
	"vibe/internal/observability"
	"vibe/internal/repl"
	"vibe/internal/session"
	"vibe/internal/sessionlog"
	"vibe/internal/transcript"
	"vibe/internal/tui"
)

type rootOptions struct {
	configPath string
	plain      bool
	offline    bool
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:           "vibe",
		Short:         "Terminal chat with an LLM agent",
		Long:          "vibe is a terminal chat front-end for an LLM agent. ctrl+l clears the conversation history.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := runChat(ctx, opts); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to config JSON/JSONC (default: $VIBE_CONFIG_PATH or ./vibe.config.json)")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Use the line-mode REPL instead of the full-screen UI")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Use the offline stand-in agent instead of a provider")

	cmd.AddCommand(newInitCmd())
	return cmd
}

func runChat(ctx context.Context, opts rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	closeLog, err := observability.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer closeLog()
	logger := observability.WithFields("component", "main")

	i18n.Init(cfg.UI.Locale)
	locale := i18n.Global()

	sink, closeSink, err := openSessionLog(ctx, cfg)
	if err != nil {
		// the session log is an audit trail; chatting works without it
		logger.Warn("session log unavailable", "error", err)
		sink, closeSink = sessionlog.Nop{}, func() {}
	}
	defer closeSink()

	var a agent.Session
	if opts.offline {
		a = agent.NewNoop()
	} else {
		a = agent.NewLLM(cfg)
	}
	ctrl := session.New(a, cfg, session.WithTranscript(transcript.New(transcript.WithObserver(sink))))
	logger.Info("session starting",
		"model", cfg.Provider.Model,
		"offline", opts.offline,
		"plain", opts.plain,
		"session_log", sink.SessionID(),
		"update_checks", cfg.EnableUpdateChecks,
	)

	// a failed initialization is shown by the front-end as a blocking error
	initErr := ctrl.Initialize(ctx)

	dispatcher := keybind.NewDispatcher()
	if opts.plain {
		err = repl.Run(ctx, ctrl, dispatcher, repl.Options{
			Model:       cfg.Provider.Model,
			Locale:      locale,
			HistoryPath: historyPath(),
		})
		return err
	}

	err = tui.Run(ctx, ctrl, dispatcher, tui.Options{
		Model:   cfg.Provider.Model,
		Offline: opts.offline,
		Locale:  locale,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return initErr
}

func openSessionLog(ctx context.Context, cfg config.Config) (sessionlog.Sink, func(), error) {
	if !cfg.SessionLogging.Enabled {
		return sessionlog.Nop{}, func() {}, nil
	}
	db, err := sessionlog.Open(cfg.SessionLogging.Dir)
	if err != nil {
		return nil, nil, err
	}
	rec, err := db.Start(ctx, cfg.Provider.Model)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return rec, func() {
		_ = rec.Close()
		_ = db.Close()
	}, nil
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vibe", "history")
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a project config template to <dir>/.vibe/config.json",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			existed := false
			if _, err := os.Stat(filepath.Join(dir, ".vibe", "config.json")); err == nil {
				existed = true
			}
			path, err := config.WriteScaffold(dir)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
				return err
			}
			key := "cmd.init.created"
			if existed {
				key = "cmd.init.exists"
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(key, path))
			return nil
		},
	}
}
