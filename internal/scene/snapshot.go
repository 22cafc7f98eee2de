package scene

import (
	"slices"

	"github.com/arscene/statesync/internal/registry"
	"github.com/arscene/statesync/internal/vbutton"
	"github.com/arscene/statesync/pkg/core"
)

// Snapshot is a consistent read-only view of the reconciliation state.
type Snapshot struct {
	Frame           uint64                `json:"frame"`
	WorldCenterMode core.WorldCenterMode  `json:"worldCenterMode"`
	WorldCenter     int                   `json:"worldCenter"`
	Anchor          int                   `json:"anchor"`
	Viewer          core.Pose             `json:"viewer"`
	FoundQueue      []int                 `json:"foundQueue"`
	Active          []int                 `json:"active"`
	Trackables      []registry.RecordView `json:"trackables"`
	Buttons         []vbutton.Button      `json:"buttons"`
	Unclaimed       int                   `json:"unclaimed"`
}

// Snapshot captures the state between two passes.
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Frame:           c.lastFrame,
		WorldCenterMode: c.mode,
		WorldCenter:     c.worldCenter,
		Anchor:          c.anchor,
		Viewer:          c.viewer,
		FoundQueue:      c.found.Items(),
		Active:          slices.Clone(c.active),
		Trackables:      c.reg.Snapshot(),
		Buttons:         c.buttons.Buttons(),
		Unclaimed:       len(c.unclaimed),
	}
}
