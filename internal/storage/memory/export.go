package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/arscene/statesync/pkg/core"
)

// ExportVersion is bumped whenever the export layout changes.
const ExportVersion = 1

var timeNow = time.Now

// SessionExport is the root JSON structure
type SessionExport struct {
	Version         int             `json:"version"`
	SessionID       string          `json:"sessionId"`
	SessionName     string          `json:"sessionName"`
	Tag             string          `json:"tag,omitempty"`
	WorldCenterMode string          `json:"worldCenterMode"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime"`
	EndFrame        uint64          `json:"endFrame"`
	Trackables      []TrackableJSON `json:"trackables"`
	Viewer          [][]any         `json:"viewer"`
	Buttons         [][]any         `json:"buttons"`
	Anchors         [][]any         `json:"anchors"`
}

// TrackableJSON represents one trackable
type TrackableJSON struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind,omitempty"`
	DataSet  string  `json:"dataSet,omitempty"`
	Poses    [][]any `json:"poses"`    // [frame, [x,y,z], [w,x,y,z]]
	Statuses [][]any `json:"statuses"` // [frame, status]
}

// exportJSON writes the session data to a (optionally gzipped) JSON file
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	// Build filename
	name := strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_").Replace(b.session.Name)
	if name == "" {
		name = "session"
	}
	timestamp := b.session.StartTime.Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s.json", name, timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := writeExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMeta = core.UploadMetadata{
		SessionName: b.session.Name,
		Tag:         b.session.Tag,
		Duration:    b.session.EndTime.Sub(b.session.StartTime).Seconds(),
		Frames:      b.lastFrame,
	}
	return nil
}

func (b *Backend) buildExport() SessionExport {
	export := SessionExport{
		Version:         ExportVersion,
		SessionID:       b.session.ID.String(),
		SessionName:     b.session.Name,
		Tag:             b.session.Tag,
		WorldCenterMode: string(b.session.WorldCenterMode),
		StartTime:       b.session.StartTime,
		EndTime:         b.session.EndTime,
		EndFrame:        b.lastFrame,
		Trackables:      make([]TrackableJSON, 0, len(b.trackables)),
		Viewer:          make([][]any, 0, len(b.viewer)),
		Buttons:         make([][]any, 0, len(b.buttons)),
		Anchors:         make([][]any, 0, len(b.anchors)),
	}

	ids := make([]int, 0, len(b.trackables))
	for id := range b.trackables {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		r := b.trackables[id]
		tj := TrackableJSON{
			ID:       id,
			Name:     r.Trackable.Name,
			Kind:     string(r.Trackable.Kind),
			DataSet:  r.Trackable.DataSet,
			Poses:    make([][]any, 0, len(r.Poses)),
			Statuses: make([][]any, 0, len(r.Statuses)),
		}
		for _, p := range r.Poses {
			tj.Poses = append(tj.Poses, poseRow(p))
		}
		for _, s := range r.Statuses {
			tj.Statuses = append(tj.Statuses, []any{s.Frame, s.Current.String()})
		}
		export.Trackables = append(export.Trackables, tj)
	}

	for _, p := range b.viewer {
		export.Viewer = append(export.Viewer, poseRow(p))
	}

	// Format: [frame, buttonId, ownerId, pressed, synthetic]
	for _, e := range b.buttons {
		export.Buttons = append(export.Buttons, []any{e.Frame, e.ButtonID, e.OwnerID, e.Pressed, e.Synthetic})
	}

	// Format: [frame, previous, current]
	for _, a := range b.anchors {
		export.Anchors = append(export.Anchors, []any{a.Frame, a.Previous, a.Current})
	}

	return export
}

func poseRow(p core.PoseUpdate) []any {
	pos, rot := p.World.Position, p.World.Orientation
	return []any{
		p.Frame,
		[]float64{pos.X, pos.Y, pos.Z},
		[]float64{rot.W, rot.X, rot.Y, rot.Z},
	}
}

func writeExport(path string, data SessionExport, compress bool) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	var w io.Writer = f
	if compress {
		gz := gzip.NewWriter(f)
		defer func() {
			if cerr := gz.Close(); err == nil {
				err = cerr
			}
		}()
		w = gz
	}

	return json.NewEncoder(w).Encode(data)
}

// ReadExport loads an export written by EndSession, gzipped or not.
func ReadExport(path string) (SessionExport, error) {
	var out SessionExport
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return out, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, fmt.Errorf("decode export: %w", err)
	}
	return out, nil
}
