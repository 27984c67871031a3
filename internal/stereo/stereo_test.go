package stereo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

func TestBuildRig(t *testing.T) {
	t.Parallel()

	t.Run("eye separation equals ipd for identity head", func(t *testing.T) {
		t.Parallel()
		rig, err := BuildRig(transform.Identity(), DefaultIPD)
		require.NoError(t, err)

		sep := rig.Right.T.Sub(rig.Left.T).Norm()
		assert.InDelta(t, DefaultIPD, sep, 1e-12)
		assert.InDelta(t, -DefaultIPD/2, rig.Left.T.X, 1e-12)
		assert.InDelta(t, DefaultIPD/2, rig.Right.T.X, 1e-12)
	})

	t.Run("eyes inherit the head rotation", func(t *testing.T) {
		t.Parallel()
		head := transform.RigidTransform{
			R: transform.RotationY(0.7).Mul(transform.RotationX(-0.2)),
			T: transform.Vec3{X: 1, Y: 1.7, Z: -3},
		}
		rig, err := BuildRig(head, 0.06)
		require.NoError(t, err)

		assert.Equal(t, head.R, rig.Left.R)
		assert.Equal(t, head.R, rig.Right.R)

		// The lateral offset is applied in the head's local frame, so the
		// separation still equals the ipd under any head rotation.
		assert.InDelta(t, 0.06, rig.Right.T.Sub(rig.Left.T).Norm(), 1e-9)
	})

	t.Run("non-positive ipd is a config error", func(t *testing.T) {
		t.Parallel()
		for _, ipd := range []float64{0, -0.064, math.NaN(), math.Inf(1)} {
			_, err := BuildRig(transform.Identity(), ipd)
			assert.ErrorIs(t, err, ErrIPD, "ipd=%v", ipd)
		}
	})
}

func TestBuildMask(t *testing.T) {
	t.Parallel()

	t.Run("800x600 reference geometry", func(t *testing.T) {
		t.Parallel()
		m, err := BuildMask(800, 600)
		require.NoError(t, err)

		assert.Equal(t, Circle{X: 200, Y: 300, R: 135}, m.Left)
		assert.Equal(t, Circle{X: 600, Y: 300, R: 135}, m.Right)
	})

	t.Run("radius limited by half width on narrow viewports", func(t *testing.T) {
		t.Parallel()
		m, err := BuildMask(400, 600)
		require.NoError(t, err)
		assert.InDelta(t, 0.45*200, m.Left.R, 1e-12)
	})

	t.Run("malformed viewport rejected", func(t *testing.T) {
		t.Parallel()
		for _, wh := range [][2]float64{{0, 600}, {800, 0}, {-800, 600}, {math.Inf(1), 600}, {800, math.NaN()}} {
			_, err := BuildMask(wh[0], wh[1])
			assert.ErrorIs(t, err, ErrViewport, "viewport %v", wh)
		}
	})
}

func TestMaskRender(t *testing.T) {
	t.Parallel()

	m, err := BuildMask(80, 60)
	require.NoError(t, err)
	img := m.Render()

	assert.Equal(t, 80, img.Bounds().Dx())
	assert.Equal(t, 60, img.Bounds().Dy())

	// Corner is opaque mask, lens centres are cut out.
	assert.EqualValues(t, 0xFF, img.NRGBAAt(0, 0).A)
	assert.EqualValues(t, 0, img.NRGBAAt(int(m.Left.X), int(m.Left.Y)).A)
	assert.EqualValues(t, 0, img.NRGBAAt(int(m.Right.X), int(m.Right.Y)).A)
}
