// pkg/core/status.go
package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the tracking state a tracker reports for a trackable.
type Status int

const (
	StatusNotFound  Status = -1
	StatusUnknown   Status = 0
	StatusUndefined Status = 1
	StatusDetected  Status = 2
	StatusTracked   Status = 3
)

var statusNames = map[Status]string{
	StatusNotFound:  "NOT_FOUND",
	StatusUnknown:   "UNKNOWN",
	StatusUndefined: "UNDEFINED",
	StatusDetected:  "DETECTED",
	StatusTracked:   "TRACKED",
}

// Visible reports whether the status counts as "found" (Detected or Tracked).
func (s Status) Visible() bool {
	return s == StatusDetected || s == StatusTracked
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// ParseStatus parses the upper-case status name produced by String.
func ParseStatus(s string) (Status, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for st, name := range statusNames {
		if name == upper {
			return st, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown status %q", s)
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the status name or its integer value.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		st, err := ParseStatus(name)
		if err != nil {
			return err
		}
		*s = st
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("status must be a name or integer: %w", err)
	}
	*s = Status(n)
	return nil
}

// Kind identifies the flavour of trackable.
type Kind string

const (
	KindImageTarget Kind = "image_target"
	KindMultiTarget Kind = "multi_target"
	KindMarker      Kind = "marker"
	KindCloudTarget Kind = "cloud_target"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindImageTarget, KindMultiTarget, KindMarker, KindCloudTarget:
		return k, nil
	}
	return "", fmt.Errorf("unknown trackable kind %q", s)
}

// WorldCenterMode selects how the per-frame anchor is chosen.
type WorldCenterMode string

const (
	WorldCenterNone WorldCenterMode = "none"
	WorldCenterUser WorldCenterMode = "user"
	WorldCenterAuto WorldCenterMode = "auto"
)

// ParseWorldCenterMode validates a world center mode name.
func ParseWorldCenterMode(s string) (WorldCenterMode, error) {
	switch m := WorldCenterMode(strings.ToLower(strings.TrimSpace(s))); m {
	case WorldCenterNone, WorldCenterUser, WorldCenterAuto:
		return m, nil
	}
	return "", fmt.Errorf("unknown world center mode %q", s)
}
