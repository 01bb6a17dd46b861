package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/taxiline/taxiline/internal/bot"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/db"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/pay"
	"github.com/taxiline/taxiline/internal/store"
	"github.com/taxiline/taxiline/internal/telegram"
)

func newBotCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the subscription bot",
		Long:  "Sells subscriptions, manages paid-group membership and notification districts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runBot(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TAXILINE_BOT_TOKEN is not set")
	}

	tables, err := districts.Open(cfg.Districts)
	if err != nil {
		return err
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

	opts := bot.Opts{
		API:       api,
		Store:     store.New(gormDB),
		Moderator: telegram.NewModerator(api, cfg.Telegram.PaidGroupID),
		Districts: tables,
		Config:    cfg,
		Out:       out,
	}
	switch {
	case cfg.Payments.TinkoffTerminal != "":
		t, err := pay.NewTinkoff(pay.TinkoffOpts{
			TerminalKey: cfg.Payments.TinkoffTerminal,
			Password:    cfg.Payments.TinkoffPassword,
		})
		if err != nil {
			return err
		}
		opts.Payments = t
	case cfg.Payments.YooKassaShopID != "":
		y, err := pay.NewYooKassa(pay.YooKassaOpts{
			ShopID:    cfg.Payments.YooKassaShopID,
			SecretKey: cfg.Payments.YooKassaSecret,
			ReturnURL: cfg.Payments.ReturnURL,
		})
		if err != nil {
			return err
		}
		opts.Payments = y
	}
	b, err := bot.New(opts)
	if err != nil {
		return err
	}

	jobs, err := b.StartJobs()
	if err != nil {
		return err
	}
	defer jobs.Stop()

	ctx, cancel := signalContext(cmd)
	defer cancel()
	return b.Run(ctx)
}
