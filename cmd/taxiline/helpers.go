package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/taxiline/taxiline/internal/config"
	"github.com/taxiline/taxiline/internal/db"
	"gorm.io/gorm"
)

// openDatabase connects per the config: MySQL when a host is set, the
// embedded SQLite file otherwise.
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Host == "" {
		return db.ConnectSQLite(cfg.Database.SQLitePath)
	}
	return db.Connect(cfg.Database.User, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()
	return ctx, cancel
}
