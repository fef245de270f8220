package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/Vitals/internal/config"
)

var (
	flagAddr  string
	flagStore string
	flagDB    string
)

var rootCmd = &cobra.Command{
	Use:           "vitals",
	Short:         "Vitals is a role-based health tracking server",
	Long:          "Vitals serves patient accounts, exercise and diet plans, and progress updates to patients and their care team.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAddr, "addr", "", "Listen address (overrides VITALS_ADDR)")
	rootCmd.PersistentFlags().StringVar(&flagStore, "store", "", "Store backend: memory, sqlite or postgres (overrides VITALS_STORE)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Snapshot path, SQLite path or Postgres DSN for the chosen store")
}

// loadConfig reads the environment and applies command-line overrides.
func loadConfig() (config.Config, error) {
	cfg := config.Load()
	if flagAddr != "" {
		cfg.Addr = flagAddr
	}
	if flagStore != "" {
		cfg.Store = strings.ToLower(strings.TrimSpace(flagStore))
	}
	if flagDB != "" {
		switch cfg.Store {
		case config.StoreMemory:
			cfg.SnapshotPath = flagDB
		case config.StoreSQLite:
			cfg.SQLitePath = flagDB
		case config.StorePostgres:
			cfg.PostgresDSN = flagDB
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
