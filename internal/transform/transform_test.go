package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

const tol = 1e-5

func vecNear(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol)
	assert.InDelta(t, want.Y, got.Y, tol)
	assert.InDelta(t, want.Z, got.Z, tol)
}

func matNear(t *testing.T, want, got Mat3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], tol)
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()

	a := RigidTransform{R: RotationY(math.Pi / 2), T: Vec3{X: 1}}
	b := Translation(Vec3{X: 2})

	c := Compose(a, b)

	// b's translation is rotated into a's frame before adding.
	matNear(t, a.R, c.R)
	vecNear(t, Vec3{X: 1, Z: -2}, c.T)
}

func TestApplyPointAndVector(t *testing.T) {
	t.Parallel()

	tr := RigidTransform{R: RotationZ(math.Pi / 2), T: Vec3{Y: 3}}

	vecNear(t, Vec3{Y: 4}, tr.ApplyPoint(Vec3{X: 1}))
	// Vectors ignore translation.
	vecNear(t, Vec3{Y: 1}, tr.ApplyVector(Vec3{X: 1}))
}

func TestRelative(t *testing.T) {
	t.Parallel()

	t.Run("identity primary passes offset through", func(t *testing.T) {
		t.Parallel()
		got := Relative(Identity(), Vec3{X: 1})
		matNear(t, IdentityMat(), got.R)
		vecNear(t, Vec3{X: 1}, got.T)
	})

	t.Run("rotation applied to offset before translation", func(t *testing.T) {
		t.Parallel()
		primary := RigidTransform{R: RotationY(math.Pi / 2)}
		got := Relative(primary, Vec3{X: 1})
		// Right-handed 90 degrees about Y sends +X to -Z.
		vecNear(t, Vec3{Z: -1}, got.T)
		matNear(t, primary.R, got.R)
	})

	t.Run("translation is R*offset + T", func(t *testing.T) {
		t.Parallel()
		primary := RigidTransform{R: RotationX(0.3).Mul(RotationY(-1.1)), T: Vec3{X: 0.5, Y: -2, Z: 4}}
		offset := Vec3{X: 0.58, Y: 0.84, Z: -2.53}

		got := Relative(primary, offset)

		vecNear(t, primary.R.MulVec(offset).Add(primary.T), got.T)
		matNear(t, primary.R, got.R)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("accepts proper rotations", func(t *testing.T) {
		t.Parallel()
		for _, tr := range []RigidTransform{
			Identity(),
			{R: RotationY(1.23), T: Vec3{X: 9, Y: -4, Z: 0.01}},
			{R: RotationZ(-0.5).Mul(RotationX(2.8))},
		} {
			assert.NoError(t, tr.Validate())
		}
	})

	t.Run("rejects scaled columns", func(t *testing.T) {
		t.Parallel()
		tr := Identity()
		tr.R[0] = 1.01 // outside the 1e-3 tolerance
		err := tr.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotRigid)
	})

	t.Run("rejects shear", func(t *testing.T) {
		t.Parallel()
		tr := Identity()
		tr.R[1] = 0.05
		assert.ErrorIs(t, tr.Validate(), ErrNotRigid)
	})

	t.Run("rejects non-finite translation", func(t *testing.T) {
		t.Parallel()
		tr := Identity()
		tr.T.Z = math.NaN()
		assert.ErrorIs(t, tr.Validate(), ErrNotRigid)
	})
}

func TestFromQuat(t *testing.T) {
	t.Parallel()

	t.Run("identity quaternion", func(t *testing.T) {
		t.Parallel()
		tr, err := FromQuat(quat.Number{Real: 1}, Vec3{X: 2})
		require.NoError(t, err)
		matNear(t, IdentityMat(), tr.R)
		vecNear(t, Vec3{X: 2}, tr.T)
	})

	t.Run("matches axis rotation", func(t *testing.T) {
		t.Parallel()
		// Quaternion for 90 degrees about Y.
		s := math.Sin(math.Pi / 4)
		tr, err := FromQuat(quat.Number{Real: math.Cos(math.Pi / 4), Jmag: s}, Vec3{})
		require.NoError(t, err)
		matNear(t, RotationY(math.Pi/2), tr.R)
	})

	t.Run("unnormalized quaternion is normalized", func(t *testing.T) {
		t.Parallel()
		tr, err := FromQuat(quat.Number{Real: 2}, Vec3{})
		require.NoError(t, err)
		assert.NoError(t, tr.Validate())
	})

	t.Run("zero quaternion rejected", func(t *testing.T) {
		t.Parallel()
		_, err := FromQuat(quat.Number{}, Vec3{})
		assert.ErrorIs(t, err, ErrNotRigid)
	})
}
