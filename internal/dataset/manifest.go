package dataset

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/arscene/statesync/internal/vbutton"
	"github.com/arscene/statesync/pkg/core"
)

// manifest is the TOML layout of a dataset file.
type manifest struct {
	WorldCenter *manifestWorldCenter `toml:"world_center"`
	DataSets    []manifestDataSet    `toml:"dataset"`
}

// manifestWorldCenter designates the user-mode anchor and where it sits in
// the scene. Orientation is w, x, y, z.
type manifestWorldCenter struct {
	ID          int       `toml:"id"`
	Position    []float64 `toml:"position"`
	Orientation []float64 `toml:"orientation"`
}

type manifestDataSet struct {
	Name       string              `toml:"name"`
	Activate   bool                `toml:"activate"`
	Trackables []manifestTrackable `toml:"trackable"`
}

type manifestTrackable struct {
	ID      int              `toml:"id"`
	Name    string           `toml:"name"`
	Kind    string           `toml:"kind"`
	Buttons []manifestButton `toml:"button"`
}

type manifestButton struct {
	ID          int          `toml:"id"`
	Name        string       `toml:"name"`
	Sensitivity string       `toml:"sensitivity"`
	Enabled     *bool        `toml:"enabled"`
	Area        vbutton.Area `toml:"area"`
}

// LoadManifest loads every dataset described in a TOML file and activates
// the ones marked activate = true. A [world_center] table places that
// trackable and makes it the explicit world center. Returns the loaded
// names in file order.
func (m *Manager) LoadManifest(path string) ([]string, error) {
	var raw manifest
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, fmt.Errorf("load dataset manifest: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		m.log.Warn().Str("path", path).Strs("keys", keys).Msg("Ignoring unknown manifest keys")
	}

	var names []string
	for _, ds := range raw.DataSets {
		name := strings.TrimSpace(ds.Name)
		if name == "" {
			return names, fmt.Errorf("load dataset manifest %s: dataset without name", path)
		}
		trackables, buttons, err := convertManifest(ds)
		if err != nil {
			return names, fmt.Errorf("load dataset manifest %s: %q: %w", path, name, err)
		}
		if err := m.Load(name, trackables, buttons); err != nil {
			return names, err
		}
		m.mu.Lock()
		m.sets[name].Path = path
		m.mu.Unlock()
		names = append(names, name)

		if ds.Activate {
			if err := m.Activate(name); err != nil {
				return names, err
			}
		}
	}

	if wc := raw.WorldCenter; wc != nil {
		pose, err := wc.pose()
		if err != nil {
			return names, fmt.Errorf("load dataset manifest %s: world center: %w", path, err)
		}
		if err := m.scene.SetWorldCenter(wc.ID); err != nil {
			return names, fmt.Errorf("load dataset manifest %s: %w", path, err)
		}
		if err := m.scene.PlaceTrackable(wc.ID, pose); err != nil {
			return names, fmt.Errorf("load dataset manifest %s: %w", path, err)
		}
		m.log.Info().Int("id", wc.ID).Msg("World center set")
	}
	return names, nil
}

func (wc *manifestWorldCenter) pose() (core.Pose, error) {
	pose := core.IdentityPose()
	switch len(wc.Position) {
	case 0:
	case 3:
		pose.Position = core.Vec3{X: wc.Position[0], Y: wc.Position[1], Z: wc.Position[2]}
	default:
		return pose, fmt.Errorf("position needs 3 values, got %d", len(wc.Position))
	}
	switch len(wc.Orientation) {
	case 0:
	case 4:
		pose.Orientation = core.Quat{W: wc.Orientation[0], X: wc.Orientation[1], Y: wc.Orientation[2], Z: wc.Orientation[3]}
	default:
		return pose, fmt.Errorf("orientation needs 4 values (w, x, y, z), got %d", len(wc.Orientation))
	}
	return pose, nil
}

func convertManifest(ds manifestDataSet) ([]core.Trackable, []vbutton.Button, error) {
	trackables := make([]core.Trackable, 0, len(ds.Trackables))
	var buttons []vbutton.Button
	for _, mt := range ds.Trackables {
		kind, err := core.ParseKind(mt.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("trackable %d: %w", mt.ID, err)
		}
		if len(mt.Buttons) > 0 && kind != core.KindImageTarget {
			return nil, nil, fmt.Errorf("trackable %d: virtual buttons need an image target, got %s", mt.ID, kind)
		}
		trackables = append(trackables, core.Trackable{ID: mt.ID, Name: mt.Name, Kind: kind})

		for _, mb := range mt.Buttons {
			sens, err := vbutton.ParseSensitivity(mb.Sensitivity)
			if err != nil {
				return nil, nil, fmt.Errorf("button %d: %w", mb.ID, err)
			}
			enabled := true
			if mb.Enabled != nil {
				enabled = *mb.Enabled
			}
			buttons = append(buttons, vbutton.Button{
				ID:          mb.ID,
				Name:        mb.Name,
				OwnerID:     mt.ID,
				Area:        mb.Area,
				Sensitivity: sens,
				Enabled:     enabled,
			})
		}
	}
	return trackables, buttons, nil
}
