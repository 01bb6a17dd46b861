package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/taxiline/taxiline/internal/aiparse"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/db"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/mirror"
	"github.com/taxiline/taxiline/internal/relay"
	"github.com/taxiline/taxiline/internal/store"
	"github.com/taxiline/taxiline/internal/telegram"
)

func newRelayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the VIP-to-free channel relay",
		Long:  "Reposts VIP orders into the free channel after a delay and extracts structured orders.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runRelay(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TAXILINE_BOT_TOKEN is not set")
	}

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	fmt.Fprintf(out, "Authorized as %s\n", api.Self.UserName)

	opts := relay.Opts{
		Sender: api,
		Store:  store.New(gormDB),
		Config: cfg.Relay,
		Out:    out,
	}
	if cfg.DeepSeek.APIKey != "" {
		parser, err := aiparse.New(aiparse.Opts{
			APIKey: cfg.DeepSeek.APIKey,
			Model:  cfg.DeepSeek.Model,
		})
		if err != nil {
			return err
		}
		opts.Parser = parser
	}
	if tables, err := districts.Open(cfg.Districts); err == nil {
		opts.Classifier = mirror.NewClassifier(tables)
	}

	r, err := relay.New(opts)
	if err != nil {
		return err
	}

	feed, err := telegram.NewFeed(api, r.Accept, out)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()
	return feed.Run(ctx)
}
