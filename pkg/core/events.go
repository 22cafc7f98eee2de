// pkg/core/events.go
package core

import (
	"time"

	"github.com/google/uuid"
)

// ViewerID is the pseudo trackable id used for viewer pose updates.
const ViewerID = -1

// NoAnchor marks the absence of an anchor trackable.
const NoAnchor = -1

// Event kinds published after each reconciliation pass.
const (
	EventAnchorChanged  = "anchor.changed"
	EventViewerUpdated  = "viewer.updated"
	EventPoseUpdated    = "pose.updated"
	EventStatusChanged  = "status.changed"
	EventButtonChanged  = "button.changed"
	EventFrameReconcile = "frame.reconciled"
)

// StatusChange is emitted when a trackable's status differs from the previous frame.
type StatusChange struct {
	Frame    uint64 `json:"frame"`
	ID       int    `json:"id"`
	Name     string `json:"name,omitempty"`
	Previous Status `json:"previous"`
	Current  Status `json:"current"`
}

// PoseUpdate carries a new world transform. ID is ViewerID for the viewer.
type PoseUpdate struct {
	Frame uint64 `json:"frame"`
	ID    int    `json:"id"`
	Name  string `json:"name,omitempty"`
	World Pose   `json:"world"`
}

// ButtonEvent is emitted on a virtual button press or release edge.
type ButtonEvent struct {
	Frame     uint64 `json:"frame"`
	ButtonID  int    `json:"buttonId"`
	Name      string `json:"name,omitempty"`
	OwnerID   int    `json:"ownerId"`
	Pressed   bool   `json:"pressed"`
	Synthetic bool   `json:"synthetic,omitempty"`
}

// AnchorChange is emitted when the resolved anchor differs from the previous frame.
type AnchorChange struct {
	Frame    uint64 `json:"frame"`
	Previous int    `json:"previous"`
	Current  int    `json:"current"`
}

// FrameSummary is the last notification of every pass.
type FrameSummary struct {
	Frame         uint64        `json:"frame"`
	Anchor        int           `json:"anchor"`
	FoundQueue    []int         `json:"foundQueue"`
	ViewerMoved   bool          `json:"viewerMoved"`
	Positioned    int           `json:"positioned"`
	TrackerFailed bool          `json:"trackerFailed"`
	Duration      time.Duration `json:"duration"`
}

// Session is one recording run of the reconciliation loop.
type Session struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Tag             string          `json:"tag,omitempty"`
	WorldCenterMode WorldCenterMode `json:"worldCenterMode"`
	StartTime       time.Time       `json:"startTime"`
	EndTime         time.Time       `json:"endTime,omitempty"`
}

// NewSession creates a session with a fresh id.
func NewSession(name, tag string, mode WorldCenterMode) *Session {
	return &Session{
		ID:              uuid.New(),
		Name:            name,
		Tag:             tag,
		WorldCenterMode: mode,
		StartTime:       time.Now(),
	}
}

// UploadMetadata contains session metadata sent along with an exported recording.
type UploadMetadata struct {
	SessionName string
	Tag         string
	Duration    float64
	Frames      uint64
}
