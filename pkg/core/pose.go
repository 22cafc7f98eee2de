// pkg/core/pose.go
package core

// Vec3 is a position or direction in scene units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quat is a unit quaternion.
type Quat struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// IdentityQuat is the no-rotation quaternion.
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// Pose is a rigid transform: orientation then translation.
type Pose struct {
	Position    Vec3 `json:"position"`
	Orientation Quat `json:"orientation"`
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: IdentityQuat()}
}

// IsZero reports whether the pose was never set (zero quaternion included).
func (p Pose) IsZero() bool {
	return p == Pose{}
}
