// pkg/core/frame.go
package core

// TrackableResult is one trackable entry of a tracker frame.
// Pose is expressed relative to the viewer.
type TrackableResult struct {
	ID     int    `json:"id"`
	Status Status `json:"status"`
	Pose   Pose   `json:"pose"`
}

// ButtonResult is one virtual button entry of a tracker frame.
type ButtonResult struct {
	ID      int  `json:"id"`
	Pressed bool `json:"pressed"`
}

// Frame is the batch of results the tracker produced for one tick.
// A negative TrackerStatus means the tracker failed for this frame.
type Frame struct {
	Index         uint64            `json:"index"`
	TrackerStatus int               `json:"trackerStatus"`
	Trackables    []TrackableResult `json:"trackables"`
	Buttons       []ButtonResult    `json:"buttons,omitempty"`
}

// Failed reports whether the tracker signalled an error for this frame.
func (f Frame) Failed() bool {
	return f.TrackerStatus < 0
}

// Trackable describes a trackable known to a dataset.
type Trackable struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	DataSet string `json:"dataSet,omitempty"`
}
