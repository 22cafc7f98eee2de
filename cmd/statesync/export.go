package main

import (
	"fmt"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/internal/database"
	"github.com/arscene/statesync/internal/storage/memory"
	sqlstorage "github.com/arscene/statesync/internal/storage/sql"
	"github.com/spf13/cobra"
)

var exportDriver string

var exportCmd = &cobra.Command{
	Use:   "export <session-uuid>",
	Short: "Export a recorded session from the database to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := database.NewManager(config.GetDBConfig(), Logger)
		if err := db.Connect(exportDriver); err != nil {
			return err
		}
		defer db.Close()

		mem := memory.New(config.GetStorageConfig().Memory)
		if err := mem.Init(); err != nil {
			return err
		}
		defer mem.Close()

		sess, err := sqlstorage.Replay(db.DB, args[0], mem)
		if err != nil {
			return fmt.Errorf("export %s: %w", args[0], err)
		}
		Logger.Info().Str("session", sess.Name).Str("file", mem.GetExportedFilePath()).Msg("Session exported")
		fmt.Fprintln(cmd.OutOrStdout(), mem.GetExportedFilePath())
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDriver, "driver", "sqlite-file", "database driver holding the session: postgres or sqlite-file")
}
