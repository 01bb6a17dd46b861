package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/db"
	"github.com/taxiline/taxiline/internal/store"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	cmd.AddCommand(newDBResetCmd())
	cmd.AddCommand(newDBExtendCmd())
	return cmd
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate all database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("refusing to drop tables without --force")
			}
			return runDBReset(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().BoolVar(&force, "force", false, "confirm destroying all data")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := gormDB.Migrator().DropTable(db.AllModels()...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %d tables\n", len(db.AllModels()))
	return nil
}

func newDBExtendCmd() *cobra.Command {
	var (
		configPath string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "extend",
		Short: "Add days to every active subscription (downtime compensation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBExtend(cmd, configPath, days)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	cmd.Flags().IntVarP(&days, "days", "d", 1, "days to add")
	return cmd
}

func runDBExtend(cmd *cobra.Command, configPath string, days int) error {
	if days <= 0 {
		return fmt.Errorf("days must be positive")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	n, err := store.New(gormDB).ExtendAll(days)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extended %d subscriptions by %d days\n", n, days)
	return nil
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update all database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))
	return nil
}
