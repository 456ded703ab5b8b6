package kinematics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a 4x4 homogeneous transform. The bottom row is always
// [0 0 0 1].
type Transform mgl64.Mat4

// Identity returns the identity transform.
func Identity() Transform {
	return Transform(mgl64.Ident4())
}

// BuildTransform returns the transform from the frame of link i-1 to the
// frame of link i for joint angle theta (radians):
//
//	Rot_z(theta + offset) * Trans_z(d) * Trans_x(a) * Rot_x(alpha)
func BuildTransform(theta float64, link LinkParams) Transform {
	th := theta + link.ThetaOffset
	ct, st := math.Cos(th), math.Sin(th)
	ca, sa := math.Cos(link.Alpha), math.Sin(link.Alpha)

	m := mgl64.Ident4()
	m.Set(0, 0, ct)
	m.Set(0, 1, -st*ca)
	m.Set(0, 2, st*sa)
	m.Set(0, 3, link.A*ct)

	m.Set(1, 0, st)
	m.Set(1, 1, ct*ca)
	m.Set(1, 2, -ct*sa)
	m.Set(1, 3, link.A*st)

	m.Set(2, 0, 0)
	m.Set(2, 1, sa)
	m.Set(2, 2, ca)
	m.Set(2, 3, link.D)

	return Transform(m)
}

// Mul returns t*o. Order matters: o is expressed in t's frame.
func (t Transform) Mul(o Transform) Transform {
	return Transform(mgl64.Mat4(t).Mul4(mgl64.Mat4(o)))
}

// At returns the entry at row, col.
func (t Transform) At(row, col int) float64 {
	return mgl64.Mat4(t).At(row, col)
}

// Translation returns the translation column.
func (t Transform) Translation() mgl64.Vec3 {
	return mgl64.Mat4(t).Col(3).Vec3()
}

// Rotation returns the upper-left 3x3 rotation block.
func (t Transform) Rotation() mgl64.Mat3 {
	return mgl64.Mat4(t).Mat3()
}

// Mat4 returns the underlying matrix.
func (t Transform) Mat4() mgl64.Mat4 {
	return mgl64.Mat4(t)
}
