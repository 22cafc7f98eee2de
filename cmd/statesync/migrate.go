package main

import (
	"fmt"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/internal/database"
	"github.com/spf13/cobra"
)

var migrateDriver string

var migrateBackupsCmd = &cobra.Command{
	Use:   "migrate-backups <dir>",
	Short: "Copy sessions from SQLite dumps in dir into the configured database",
	Long: `migrate-backups copies every session found in the *.db files of dir into
the configured database. Sessions already present are skipped. Each migrated
file is renamed to <file>.migrated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := database.BackupPaths(args[0])
		if err != nil {
			return fmt.Errorf("failed to list backups: %w", err)
		}
		if len(paths) == 0 {
			Logger.Info().Str("dir", args[0]).Msg("No backups found")
			return nil
		}

		db := database.NewManager(config.GetDBConfig(), Logger)
		if err := db.Connect(migrateDriver); err != nil {
			return err
		}
		defer db.Close()
		if db.InMemory {
			return fmt.Errorf("refusing to migrate into an in-memory database")
		}
		if err := db.Setup(); err != nil {
			return err
		}

		done, err := database.MigrateBackups(db.DB, paths, Logger)
		Logger.Info().Int("migrated", len(done)).Int("found", len(paths)).Msg("Backup migration finished")
		return err
	},
}

func init() {
	migrateBackupsCmd.Flags().StringVar(&migrateDriver, "driver", "postgres", "target database driver: postgres or sqlite-file")
}
