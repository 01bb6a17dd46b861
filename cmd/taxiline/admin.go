package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taxiline/taxiline/internal/admin"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/db"
	"github.com/taxiline/taxiline/internal/districts"
	"github.com/taxiline/taxiline/internal/store"
)

func newAdminCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Start the admin web panel",
		Long:  "Launches the operator panel: dashboard counts, users, orders and the keyword editor.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, configPath, addr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides config)")
	return cmd
}

func runAdmin(cmd *cobra.Command, configPath, addr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
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

	if addr == "" {
		addr = cfg.Admin.Addr
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	return admin.Start(ctx, admin.StartOpts{
		Store:     store.New(gormDB),
		Districts: tables,
		Addr:      addr,
		User:      cfg.Admin.User,
		Password:  cfg.Admin.Password,
		Out:       cmd.OutOrStdout(),
	})
}
