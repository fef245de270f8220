package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/Vitals/internal/api"
	"github.com/soaringjerry/Vitals/internal/backup"
)

// withStore opens the configured store for a one-shot command.
func withStore(cmd *cobra.Command, fn func(store api.Store, rt *api.Router) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			log.Printf("warning: close store: %v", cerr)
		}
	}()
	return fn(store, newRouter(store, cfg, nil))
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default accounts if the store is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(_ api.Store, rt *api.Router) error {
			seeded, err := rt.EnsureSeedData(cmd.Context())
			if err != nil {
				return err
			}
			if seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "Seeded default accounts")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Store already has accounts; nothing seeded")
			}
			return nil
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect accounts",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(_ api.Store, rt *api.Router) error {
			all, err := rt.Identity().ListAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ID\tROLE\tEMAIL\tNAME\tCREATED")
			for _, u := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Role, u.Email, u.Name, u.CreatedAt.Format(time.RFC3339))
			}
			return nil
		})
	},
}

var backupBucket string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of the store to S3",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		bucket := cfg.BackupBucket
		if backupBucket != "" {
			bucket = backupBucket
		}
		if bucket == "" {
			return fmt.Errorf("--bucket or VITALS_BACKUP_BUCKET is required")
		}
		up, err := backup.NewS3UploaderFromEnv(cmd.Context(), bucket)
		if err != nil {
			return err
		}
		return withStore(cmd, func(store api.Store, _ *api.Router) error {
			key, err := up.Upload(cmd.Context(), store)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded s3://%s/%s\n", bucket, key)
			return nil
		})
	},
}

func init() {
	backupCmd.Flags().StringVar(&backupBucket, "bucket", "", "Target bucket (default VITALS_BACKUP_BUCKET)")
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(seedCmd, usersCmd, backupCmd)
}
