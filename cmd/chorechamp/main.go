package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorechamp/internal/config"
	"github.com/dukerupert/chorechamp/internal/logging"
	"github.com/dukerupert/chorechamp/internal/store"
)

var (
	Version = "dev"
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "chorechamp",
		Short:         "ChoreChamp - family chores, points and rewards",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "environment file to load before reading configuration")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(resetWeeklyCmd())
	rootCmd.AddCommand(vapidKeysCmd())
	rootCmd.AddCommand(backupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, sets up logging and opens the store.
func bootstrap() (*config.Config, store.Store, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	s, err := store.Open(cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}
