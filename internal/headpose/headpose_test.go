package headpose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

func TestPoseTransform(t *testing.T) {
	t.Parallel()

	t.Run("zero pose is identity rotation", func(t *testing.T) {
		t.Parallel()
		tr := Pose{Position: transform.Vec3{Y: 1.7}}.Transform()
		assert.Equal(t, transform.IdentityMat(), tr.R)
		assert.Equal(t, transform.Vec3{Y: 1.7}, tr.T)
	})

	t.Run("yaw rotates about Y", func(t *testing.T) {
		t.Parallel()
		tr := Pose{Yaw: 90}.Transform()
		// Looking 90 degrees left sends +X to -Z.
		v := tr.ApplyVector(transform.Vec3{X: 1})
		assert.InDelta(t, 0, v.X, 1e-9)
		assert.InDelta(t, -1, v.Z, 1e-9)
	})

	t.Run("transform is rigid for arbitrary poses", func(t *testing.T) {
		t.Parallel()
		tr := Pose{Roll: 12.5, Pitch: -40, Yaw: 171, Position: transform.Vec3{X: 1, Y: 2, Z: 3}}.Transform()
		assert.NoError(t, tr.Validate())
	})
}

func TestQuaternionMatchesTransform(t *testing.T) {
	t.Parallel()

	for _, p := range []Pose{
		{},
		{Yaw: 45},
		{Roll: 10, Pitch: 20, Yaw: 30},
		{Roll: -170, Pitch: 89, Yaw: -91, Position: transform.Vec3{X: 0.3}},
	} {
		fromQuat, err := transform.FromQuat(p.Quaternion(), p.Position)
		require.NoError(t, err)

		direct := p.Transform()
		for i := range direct.R {
			assert.InDelta(t, direct.R[i], fromQuat.R[i], 1e-9, "pose %+v element %d", p, i)
		}
	}
}

func TestPoseFromAccel(t *testing.T) {
	t.Parallel()

	t.Run("level", func(t *testing.T) {
		t.Parallel()
		p := PoseFromAccel(0, 0, 1)
		assert.InDelta(t, 0, p.Roll, 1e-9)
		assert.InDelta(t, 0, p.Pitch, 1e-9)
	})

	t.Run("tilted", func(t *testing.T) {
		t.Parallel()
		p := PoseFromAccel(0, 1, 0)
		assert.InDelta(t, 90, p.Roll, 1e-9)

		p = PoseFromAccel(-1, 0, 0)
		assert.InDelta(t, 90, p.Pitch, 1e-9)
	})
}

func TestMockSource(t *testing.T) {
	t.Parallel()

	src := NewMockSource()
	p, err := src.Next()
	require.NoError(t, err)
	assert.InDelta(t, 1.7, p.Position.Y, 1e-9)
	assert.NoError(t, p.Transform().Validate())
}
