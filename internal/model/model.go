package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Trackable{},
	&PoseSample{},
	&StatusChange{},
	&ButtonEvent{},
	&AnchorChange{},
	&FrameStat{},
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Session is one recording run of the reconciliation loop
type Session struct {
	gorm.Model
	UUID            string         `json:"uuid" gorm:"size:36;uniqueIndex:idx_session_uuid"`
	Name            string         `json:"name" gorm:"size:200"`
	Tag             string         `json:"tag" gorm:"size:127"`
	WorldCenterMode string         `json:"worldCenterMode" gorm:"size:16"`
	StartTime       time.Time      `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime         sql.NullTime   `json:"endTime" gorm:"type:timestamptz"`
	Frames          uint64         `json:"frames"`
	Config          datatypes.JSON `json:"config"` // effective config at session start
	Trackables      []Trackable
}

func (*Session) TableName() string {
	return "sessions"
}

// Trackable is a registered target within a session
// Uses composite primary key (SessionID, TrackableID)
type Trackable struct {
	SessionID   uint          `json:"sessionId" gorm:"primaryKey;autoIncrement:false"`
	TrackableID int           `json:"trackableId" gorm:"primaryKey;autoIncrement:false"`
	Session     Session       `gorm:"foreignkey:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	Name        string        `json:"name" gorm:"size:127"`
	Kind        string        `json:"kind" gorm:"size:32"`
	DataSet     string        `json:"dataSet" gorm:"size:127"`
	Trajectory  geom.Geometry `json:"-"`       // LineStringZ of world positions, filled at session end
	Samples     uint          `json:"samples"` // number of pose samples in Trajectory
}

func (*Trackable) TableName() string {
	return "trackables"
}

// Orientation is a unit quaternion stored as four columns
type Orientation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PoseSample is the world pose of a trackable (or the viewer, id -1) at a frame
type PoseSample struct {
	ID           uint        `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time   `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint        `json:"sessionId" gorm:"index:idx_posesample_session_id"`
	Session      Session     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame uint64      `json:"captureFrame" gorm:"index:idx_posesample_capture_frame"`
	TrackableID  int         `json:"trackableId" gorm:"index:idx_posesample_trackable_id"`
	Position     geom.Point  `json:"position"`    // scene position X/Y
	Elevation    float64     `json:"elevation"`   // scene position Z
	GeoPosition  geom.Point  `json:"geoPosition"` // EPSG:4326 when a geo reference is configured
	Orientation  Orientation `json:"orientation" gorm:"embedded;embeddedPrefix:orientation_"`
}

func (*PoseSample) TableName() string {
	return "pose_samples"
}

// StatusChange records a tracking status transition
type StatusChange struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_statuschange_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame uint64    `json:"captureFrame" gorm:"index:idx_statuschange_capture_frame"`
	TrackableID  int       `json:"trackableId" gorm:"index:idx_statuschange_trackable_id"`
	Previous     string    `json:"previous" gorm:"size:16"`
	Current      string    `json:"current" gorm:"size:16"`
}

func (*StatusChange) TableName() string {
	return "status_changes"
}

// ButtonEvent records a virtual button press or release
type ButtonEvent struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_buttonevent_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame uint64    `json:"captureFrame" gorm:"index:idx_buttonevent_capture_frame"`
	ButtonID     int       `json:"buttonId"`
	OwnerID      int       `json:"ownerId"`
	Name         string    `json:"name" gorm:"size:127"`
	Pressed      bool      `json:"pressed"`
	Synthetic    bool      `json:"synthetic" gorm:"default:false"` // release caused by disabling the owner
}

func (*ButtonEvent) TableName() string {
	return "button_events"
}

// AnchorChange records the world anchor switching trackables
type AnchorChange struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_anchorchange_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame uint64    `json:"captureFrame"`
	Previous     int       `json:"previous"`
	Current      int       `json:"current"`
}

func (*AnchorChange) TableName() string {
	return "anchor_changes"
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// FrameStat is a periodic sample of loop and writer health
type FrameStat struct {
	Time              time.Time         `json:"time" gorm:"type:timestamptz;index:idx_framestat_time"`
	SessionID         uint              `json:"sessionId" gorm:"index:idx_framestat_session_id"`
	Session           Session           `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame      uint64            `json:"captureFrame"`
	Anchor            int               `json:"anchor"`
	FoundQueueLength  int               `json:"foundQueueLength"`
	Registered        int               `json:"registered"`
	WriteQueueLengths WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDuration float32           `json:"lastWriteDurationMs"`
}

func (*FrameStat) TableName() string {
	return "frame_stats"
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	PoseSamples   int `json:"poseSamples"`
	StatusChanges int `json:"statusChanges"`
	ButtonEvents  int `json:"buttonEvents"`
	AnchorChanges int `json:"anchorChanges"`
}
