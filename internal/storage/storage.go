// Package storage defines the recording backends fed by the frame loop.
package storage

import "github.com/arscene/statesync/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(session *core.Session) error
	EndSession() error

	// Trackable registration
	AddTrackable(t core.Trackable) error

	// Frame output
	RecordPose(p *core.PoseUpdate) error
	RecordStatusChange(c *core.StatusChange) error
	RecordButtonEvent(e *core.ButtonEvent) error
	RecordAnchorChange(a *core.AnchorChange) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload after the session ends.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
