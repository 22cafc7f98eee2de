package main

import (
	"fmt"

	"github.com/arscene/statesync/internal/dataset"
	"github.com/arscene/statesync/internal/scene"
	"github.com/arscene/statesync/pkg/core"
	"github.com/rs/zerolog"
)

// sceneSetup is what the commands need to build a reconciliation context.
type sceneSetup struct {
	Mode      core.WorldCenterMode
	Manifest  string
	Publisher scene.Publisher
	Logger    zerolog.Logger
	// WorldCenter overrides the manifest's [world_center] id when not core.NoAnchor.
	WorldCenter int
}

// newScene creates the context, loads the dataset manifest and applies the
// explicit world center.
func newScene(setup sceneSetup, log zerolog.Logger) (*scene.Context, error) {
	sc, err := scene.New(scene.Options{Mode: setup.Mode, Publisher: setup.Publisher, Logger: setup.Logger})
	if err != nil {
		return nil, fmt.Errorf("failed to create scene: %w", err)
	}
	if setup.Manifest != "" {
		names, err := dataset.NewManager(sc, log).LoadManifest(setup.Manifest)
		if err != nil {
			return nil, err
		}
		log.Info().Strs("dataSets", names).Str("manifest", setup.Manifest).Msg("Datasets loaded")
	}
	if setup.WorldCenter != core.NoAnchor {
		if err := sc.SetWorldCenter(setup.WorldCenter); err != nil {
			return nil, fmt.Errorf("world center: %w", err)
		}
	}
	if setup.Mode == core.WorldCenterUser && sc.WorldCenter() == core.NoAnchor {
		log.Warn().Msg("User world center mode without a world center, the viewer will not move")
	}
	return sc, nil
}
