package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/db"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/mirror"
	"github.com/taxiline/taxiline/internal/store"
	"github.com/taxiline/taxiline/internal/telegram"
)

func newMirrorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Run the order mirror",
		Long:  "Watches the source channels and mirrors deduplicated orders into the destination forum.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runMirror(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.MirrorToken == "" {
		return fmt.Errorf("TAXILINE_MIRROR_TOKEN is not set")
	}

	tables, err := districts.Open(cfg.Districts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Loaded %d districts from %s\n", len(tables.Current().Districts), cfg.Districts)

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	st := store.New(gormDB)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.MirrorToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	fmt.Fprintf(out, "Authorized as %s\n", api.Self.UserName)

	engine, err := mirror.NewEngine(mirror.EngineOpts{
		Writer:          telegram.NewWriter(api, cfg.Telegram.ForumChatID),
		Tables:          tables,
		AllOrdersThread: cfg.Telegram.AllOrdersThread,
		Subscribers:     st,
		Notifier:        telegram.NewNotifier(api),
		Out:             out,
	})
	if err != nil {
		return err
	}

	listener, err := mirror.NewListener(mirror.ListenerOpts{
		Classifier: mirror.NewClassifier(tables),
		Engine:     engine,
		MinTextLen: cfg.Telegram.MinTextLen,
		Ignore:     cfg.Telegram.IgnoreChannels,
		Out:        out,
	})
	if err != nil {
		return err
	}

	feed, err := telegram.NewFeed(api, listener.Accept, out)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- engine.Run(ctx) }()
	go func() { errCh <- feed.Run(ctx) }()

	// First failure (or shutdown) wins; the context stops the other loop.
	err = <-errCh
	cancel()
	engine.Close()
	<-errCh
	return err
}
