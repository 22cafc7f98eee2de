// Package spatial converts tracker poses into scene transforms.
//
// Tracker poses are camera-relative and use a convention rotated 90 degrees
// about the X axis compared to the scene. AxisCorrection bridges the two.
package spatial

import (
	"github.com/arscene/statesync/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// DefaultEpsilon is the tolerance used by ApproxEqual.
const DefaultEpsilon = 1e-6

var (
	// AxisCorrection is a 90 degree rotation about -X.
	AxisCorrection = mgl64.QuatRotate(mgl64.DegToRad(90), mgl64.Vec3{-1, 0, 0})
	// axisCorrectionInv is the 270 degree rotation about -X.
	axisCorrectionInv = mgl64.QuatRotate(mgl64.DegToRad(270), mgl64.Vec3{-1, 0, 0})
)

// ViewerFromAnchor places the viewer so that the anchor keeps its world
// transform while being observed at the camera-relative pose rel.
//
//	viewer.rot = anchor.rot * C * inv(q)
//	viewer.pos = anchor.rot * C * inv(q) * (-p) + anchor.pos
func ViewerFromAnchor(anchor, rel core.Pose) core.Pose {
	rot := toQuat(anchor.Orientation).Mul(AxisCorrection).Mul(toQuat(rel.Orientation).Inverse()).Normalize()
	pos := rot.Rotate(toVec(rel.Position).Mul(-1)).Add(toVec(anchor.Position))
	return core.Pose{Position: fromVec(pos), Orientation: fromQuat(rot)}
}

// EntityFromViewer places a trackable observed at rel relative to the viewer.
//
//	pos = viewer.rot * p + viewer.pos
//	rot = viewer.rot * q * inv(C)
func EntityFromViewer(viewer, rel core.Pose) core.Pose {
	vrot := toQuat(viewer.Orientation)
	pos := vrot.Rotate(toVec(rel.Position)).Add(toVec(viewer.Position))
	rot := vrot.Mul(toQuat(rel.Orientation)).Mul(axisCorrectionInv).Normalize()
	return core.Pose{Position: fromVec(pos), Orientation: fromQuat(rot)}
}

// Compose applies child in parent's frame.
func Compose(parent, child core.Pose) core.Pose {
	prot := toQuat(parent.Orientation)
	return core.Pose{
		Position:    fromVec(prot.Rotate(toVec(child.Position)).Add(toVec(parent.Position))),
		Orientation: fromQuat(prot.Mul(toQuat(child.Orientation)).Normalize()),
	}
}

// ApproxEqual compares two poses. Quaternions q and -q are the same rotation.
func ApproxEqual(a, b core.Pose, eps float64) bool {
	if !toVec(a.Position).ApproxEqualThreshold(toVec(b.Position), eps) {
		return false
	}
	qa, qb := toQuat(a.Orientation), toQuat(b.Orientation)
	return qa.ApproxEqualThreshold(qb, eps) || qa.ApproxEqualThreshold(qb.Scale(-1), eps)
}

// Distance is the euclidean distance between two positions.
func Distance(a, b core.Vec3) float64 {
	return toVec(a).Sub(toVec(b)).Len()
}

func toVec(v core.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

func fromVec(v mgl64.Vec3) core.Vec3 {
	return core.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

// toQuat treats the zero quaternion as identity.
func toQuat(q core.Quat) mgl64.Quat {
	if q == (core.Quat{}) {
		return mgl64.QuatIdent()
	}
	return mgl64.Quat{W: q.W, V: mgl64.Vec3{q.X, q.Y, q.Z}}
}

func fromQuat(q mgl64.Quat) core.Quat {
	return core.Quat{W: q.W, X: q.V[0], Y: q.V[1], Z: q.V[2]}
}
