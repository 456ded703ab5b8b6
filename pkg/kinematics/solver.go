package kinematics

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Pose is the end-effector position (meters) and orientation in the base frame.
type Pose struct {
	X, Y, Z  float64
	Rotation mgl64.Mat3
}

// PoseOf extracts the pose carried by t.
func PoseOf(t Transform) Pose {
	p := t.Translation()
	return Pose{X: p.X(), Y: p.Y(), Z: p.Z(), Rotation: t.Rotation()}
}

// Position returns the position as a vector.
func (p Pose) Position() mgl64.Vec3 {
	return mgl64.Vec3{p.X, p.Y, p.Z}
}

// Orientation returns the rotation as a unit quaternion.
func (p Pose) Orientation() mgl64.Quat {
	return mgl64.Mat4ToQuat(p.Rotation.Mat4()).Normalize()
}

// Solve composes the chain for the given joint angles in degrees, base
// joint first, and returns the end-effector transform and pose.
// Every real input has a result; singular configurations are not errors.
func (c Chain) Solve(degrees [Links]float64) (Transform, Pose) {
	t := Identity()
	for i, link := range c {
		t = t.Mul(BuildTransform(Radians(degrees[i]), link))
	}
	return t, PoseOf(t)
}

// Frames returns the cumulative transform of every link frame, base first.
// The last entry equals the transform returned by Solve.
func (c Chain) Frames(degrees [Links]float64) [Links]Transform {
	var frames [Links]Transform
	t := Identity()
	for i, link := range c {
		t = t.Mul(BuildTransform(Radians(degrees[i]), link))
		frames[i] = t
	}
	return frames
}
