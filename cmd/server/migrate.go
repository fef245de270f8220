package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/Vitals/internal/api"
	"github.com/soaringjerry/Vitals/internal/db"
)

// MigrateIfNeeded copies the JSON snapshot at snapshotPath into a new SQLite
// database at sqlitePath. It does nothing when the database already exists
// or there is no snapshot to copy.
func MigrateIfNeeded(ctx context.Context, snapshotPath, sqlitePath string, timeout time.Duration) error {
	if sqlitePath == "" {
		return errors.New("sqlite path is required")
	}
	if _, err := os.Stat(sqlitePath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("check sqlite file: %w", err)
	}
	if snapshotPath == "" {
		return nil
	}
	snap, err := api.LoadSnapshot(snapshotPath)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil
	}

	log.Printf("First run detected, copying snapshot %s into %s...", snapshotPath, sqlitePath)
	dst, err := db.Open(ctx, sqlitePath, timeout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil {
			log.Printf("warning: failed to close sqlite db: %v", cerr)
		}
	}()
	if err := api.Restore(ctx, dst, snap); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	log.Printf("Data migration completed: %d users, %d exercise plans, %d diet plans, %d progress updates.",
		len(snap.Users), len(snap.ExercisePlans), len(snap.DietPlans), len(snap.ProgressUpdates))
	return nil
}

var (
	migrateFrom string
	migrateTo   string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy a JSON snapshot into a new SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		from, to := cfg.SnapshotPath, cfg.SQLitePath
		if migrateFrom != "" {
			from = migrateFrom
		}
		if migrateTo != "" {
			to = migrateTo
		}
		if err := MigrateIfNeeded(cmd.Context(), from, to, cfg.StoreTimeout); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "SQLite database ready: %s\n", to)
		return nil
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "", "Snapshot to copy (default VITALS_SNAPSHOT_PATH)")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "", "SQLite database to create (default VITALS_SQLITE_PATH)")
	rootCmd.AddCommand(migrateCmd)
}
