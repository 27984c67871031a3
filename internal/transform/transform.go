package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// ErrNotRigid is returned when a transform read from storage or the wire
// fails the orthonormality/finiteness check.
var ErrNotRigid = errors.New("transform is not rigid")

// Tolerance for the orthonormality check on loaded rotations: column
// lengths and pairwise column dot products must be within this of 1 and 0.
const orthoTol = 1e-3

// Vec3 is a 3-vector in metres.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(w Vec3) Vec3 {
	return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z}
}

func (v Vec3) Sub(w Vec3) Vec3 {
	return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{s * v.X, s * v.Y, s * v.Z}
}

func (v Vec3) Dot(w Vec3) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

func (v Vec3) isFinite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}

// Mat3 is a row-major 3x3 matrix. Only orthonormal rotation matrices are
// used in this package; Validate on the enclosing RigidTransform enforces
// that for values loaded from outside.
type Mat3 [9]float64

// IdentityMat returns the 3x3 identity.
func IdentityMat() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Mul returns m*n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[3*r+c] = m[3*r]*n[c] + m[3*r+1]*n[3+c] + m[3*r+2]*n[6+c]
		}
	}
	return out
}

// MulVec returns m*v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// col returns the i-th column of m.
func (m Mat3) col(i int) Vec3 {
	return Vec3{m[i], m[3+i], m[6+i]}
}

// RotationX returns the right-handed rotation about the X axis by angle radians.
func RotationX(angle float64) Mat3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Mat3{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	}
}

// RotationY returns the right-handed rotation about the Y axis by angle radians.
func RotationY(angle float64) Mat3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Mat3{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	}
}

// RotationZ returns the right-handed rotation about the Z axis by angle radians.
func RotationZ(angle float64) Mat3 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Mat3{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// RigidTransform is an orientation-preserving pose: orthonormal rotation
// plus translation, no scale or shear. Values are immutable and freely
// copyable; all operations return new values.
type RigidTransform struct {
	R Mat3 `json:"rotation"`
	T Vec3 `json:"translation"`
}

// Identity returns the identity transform.
func Identity() RigidTransform {
	return RigidTransform{R: IdentityMat()}
}

// Translation returns a pure translation by v.
func Translation(v Vec3) RigidTransform {
	return RigidTransform{R: IdentityMat(), T: v}
}

// Compose applies b in a's frame:
//
//	rotation    = a.R * b.R
//	translation = a.R * b.T + a.T
func Compose(a, b RigidTransform) RigidTransform {
	return RigidTransform{
		R: a.R.Mul(b.R),
		T: a.R.MulVec(b.T).Add(a.T),
	}
}

// ApplyPoint transforms the point p into the parent frame.
func (t RigidTransform) ApplyPoint(p Vec3) Vec3 {
	return t.R.MulVec(p).Add(t.T)
}

// ApplyVector transforms the direction v into the parent frame. Vectors
// ignore translation.
func (t RigidTransform) ApplyVector(v Vec3) Vec3 {
	return t.R.MulVec(v)
}

// Validate checks that t is a rigid transform: every rotation column has
// unit length, columns are mutually perpendicular, and the translation is
// finite. Transforms accepted from storage or the wire must pass this
// before use; a failing transform is dropped, never silently used.
func (t RigidTransform) Validate() error {
	for i := 0; i < 3; i++ {
		ci := t.R.col(i)
		if !ci.isFinite() {
			return fmt.Errorf("%w: rotation column %d is not finite", ErrNotRigid, i)
		}
		if d := math.Abs(ci.Norm() - 1); d > orthoTol {
			return fmt.Errorf("%w: rotation column %d has length %.6f", ErrNotRigid, i, ci.Norm())
		}
		for j := i + 1; j < 3; j++ {
			if d := math.Abs(ci.Dot(t.R.col(j))); d > orthoTol {
				return fmt.Errorf("%w: rotation columns %d and %d are not perpendicular (dot %.6f)", ErrNotRigid, i, j, d)
			}
		}
	}
	if !t.T.isFinite() {
		return fmt.Errorf("%w: translation is not finite", ErrNotRigid)
	}
	return nil
}

// Relative derives a secondary object's world transform from the primary
// object's current transform plus a fixed offset in the primary's local
// frame. The secondary inherits the primary's rotation. Re-deriving from
// the live primary keeps the relative geometry of the two objects exact
// even when the absolute world frame has drifted between sessions.
func Relative(primary RigidTransform, offset Vec3) RigidTransform {
	return RigidTransform{
		R: primary.R,
		T: primary.R.MulVec(offset).Add(primary.T),
	}
}

// FromQuat builds a rigid transform from a quaternion orientation and a
// translation. The quaternion is normalized first; a near-zero quaternion
// cannot encode an orientation and is rejected.
func FromQuat(q quat.Number, t Vec3) (RigidTransform, error) {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n < 1e-9 {
		return RigidTransform{}, fmt.Errorf("%w: zero quaternion", ErrNotRigid)
	}
	w, x, y, z := q.Real/n, q.Imag/n, q.Jmag/n, q.Kmag/n
	return RigidTransform{
		R: Mat3{
			1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
			2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
			2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
		},
		T: t,
	}, nil
}
