package main

import (
	"encoding/json"
	"fmt"

	"github.com/arscene/statesync/internal/config"
	"github.com/arscene/statesync/pkg/core"
	"github.com/spf13/cobra"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <manifest.toml>",
	Short: "Load a manifest, mark every enabled trackable tracked and print the scene snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := core.ParseWorldCenterMode(config.GetString("worldCenterMode"))
		if err != nil {
			return err
		}
		sc, err := newScene(sceneSetup{
			Mode:        mode,
			Manifest:    args[0],
			Logger:      Logger,
			WorldCenter: config.GetInt("worldCenter"),
		}, Logger)
		if err != nil {
			return err
		}

		changes := sc.SimulateAllTracked()
		Logger.Debug().Int("changes", len(changes)).Msg("Simulated tracking")

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(sc.Snapshot()); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return nil
	},
}
