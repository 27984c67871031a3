package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/anchor_stage/internal/relocal"
	"github.com/relabs-tech/anchor_stage/internal/room"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

func mappedOutcome() relocal.Outcome {
	return relocal.Outcome{State: relocal.StateMapped, Aligned: true}
}

func snapshotWithKitchen(pose transform.RigidTransform) *room.Snapshot {
	snap := room.Empty()
	snap.Anchors["kitchen"] = room.Anchor{Name: "kitchen", Pose: pose}
	return snap
}

func gunBinding(offset transform.Vec3) Config {
	return Config{
		Hazards: []HazardBinding{{Name: "gun", Primary: "kitchen", Offset: offset}},
	}
}

func TestPlaceAnchors(t *testing.T) {
	t.Parallel()

	t.Run("hazard derived from identity primary", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, snapshotWithKitchen(transform.Identity()), nil, gunBinding(transform.Vec3{X: 1}))

		placed := a.PlaceAnchors(mappedOutcome())
		assert.Equal(t, 2, placed)

		gun, ok := rec.Objects["gun"]
		require.True(t, ok)
		assert.InDelta(t, 1, gun.Pose.T.X, 1e-9)
		assert.InDelta(t, 0, gun.Pose.T.Y, 1e-9)
		assert.InDelta(t, 0, gun.Pose.T.Z, 1e-9)
	})

	t.Run("rotation applied to offset before translation", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		primary := transform.RigidTransform{R: transform.RotationY(math.Pi / 2)}
		a := NewAssembler(rec, snapshotWithKitchen(primary), nil, gunBinding(transform.Vec3{X: 1}))

		a.PlaceAnchors(mappedOutcome())

		gun := rec.Objects["gun"]
		assert.InDelta(t, 0, gun.Pose.T.X, 1e-9)
		assert.InDelta(t, -1, gun.Pose.T.Z, 1e-9)
		assert.Equal(t, primary.R, gun.Pose.R)
	})

	t.Run("persisted hazard pose is ignored", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		snap := snapshotWithKitchen(transform.Identity())
		// A stale hazard anchor from a previous session must not win over
		// the live derivation.
		snap.Anchors["gun"] = room.Anchor{Name: "gun", Pose: transform.Translation(transform.Vec3{X: 99})}
		a := NewAssembler(rec, snap, nil, gunBinding(transform.Vec3{X: 1}))

		a.PlaceAnchors(mappedOutcome())

		assert.InDelta(t, 1, rec.Objects["gun"].Pose.T.X, 1e-9)
	})

	t.Run("missing primary falls back to identity", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		snap := room.Empty()
		snap.Anchors["sofa"] = room.Anchor{Name: "sofa", Pose: transform.Identity()}
		a := NewAssembler(rec, snap, nil, gunBinding(transform.Vec3{X: 2}))

		placed := a.PlaceAnchors(mappedOutcome())
		assert.Equal(t, 2, placed)
		assert.InDelta(t, 2, rec.Objects["gun"].Pose.T.X, 1e-9)
	})

	t.Run("empty snapshot places nothing and is still ready", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, gunBinding(transform.Vec3{X: 1}))

		placed := a.PlaceAnchors(relocal.Outcome{State: relocal.StateTimedOut})
		assert.Equal(t, 0, placed)
		assert.Empty(t, rec.Objects)
		assert.Empty(t, rec.Log)
	})

	t.Run("placement is idempotent", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, snapshotWithKitchen(transform.Identity()), nil, gunBinding(transform.Vec3{X: 1}))

		a.PlaceAnchors(mappedOutcome())
		first := map[string]PlacedObject{}
		for k, v := range rec.Objects {
			first[k] = v
		}

		a.PlaceAnchors(mappedOutcome())
		assert.Equal(t, first, rec.Objects, "re-placement replaces, never duplicates")
		assert.Len(t, rec.Objects, 2)
	})
}

func TestConfigureViews(t *testing.T) {
	t.Parallel()

	head := transform.RigidTransform{R: transform.RotationY(0.4), T: transform.Vec3{Y: 1.7}}

	t.Run("mono emits a single unmodified camera pose", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: false})

		require.NoError(t, a.ConfigureViews(head))

		require.Len(t, rec.Cameras, 1)
		assert.Equal(t, head, rec.Cameras[EyeMono])
		assert.Nil(t, rec.Mask)
	})

	t.Run("stereo emits both eyes and the mask", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: true, IPD: 0.064, ViewportW: 800, ViewportH: 600})

		require.NoError(t, a.ConfigureViews(head))

		require.Len(t, rec.Cameras, 2)
		assert.Equal(t, head.R, rec.Cameras[EyeLeft].R)
		assert.Equal(t, head.R, rec.Cameras[EyeRight].R)
		require.NotNil(t, rec.Mask)
		assert.InDelta(t, 135, rec.Mask.Left.R, 1e-9)
	})

	t.Run("reconfiguring the same mode is idempotent", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: true, IPD: 0.064, ViewportW: 800, ViewportH: 600})

		require.NoError(t, a.ConfigureViews(head))
		camsAfterFirst := len(rec.Cameras)
		require.NoError(t, a.ConfigureViews(head))

		assert.Equal(t, camsAfterFirst, len(rec.Cameras), "no duplicate cameras")
		require.NotNil(t, rec.Mask)
	})

	t.Run("mode switch fully replaces the previous configuration", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: true, IPD: 0.064, ViewportW: 800, ViewportH: 600})

		require.NoError(t, a.ConfigureViews(head))
		require.NoError(t, a.SetStereo(false, head))

		require.Len(t, rec.Cameras, 1)
		_, hasLeft := rec.Cameras[EyeLeft]
		assert.False(t, hasLeft)
		assert.Nil(t, rec.Mask, "mask removed when leaving stereo")
	})

	t.Run("bad ipd fails the eye path but the mask still lands", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: true, IPD: -1, ViewportW: 800, ViewportH: 600})

		err := a.ConfigureViews(head)
		require.Error(t, err)
		assert.Empty(t, rec.Cameras)
		assert.NotNil(t, rec.Mask)
	})

	t.Run("viewport change rebuilds the mask", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: true, IPD: 0.064, ViewportW: 800, ViewportH: 600})

		require.NoError(t, a.ConfigureViews(head))
		require.NoError(t, a.SetViewport(1280, 720, head))

		require.NotNil(t, rec.Mask)
		assert.InDelta(t, 1280, rec.Mask.Width, 1e-9)
		assert.InDelta(t, 0.45*math.Min(640, 720), rec.Mask.Left.R, 1e-9)
	})

	t.Run("bad viewport fails the mask path but the eyes still land", func(t *testing.T) {
		t.Parallel()
		rec := NewRecorder()
		a := NewAssembler(rec, room.Empty(), nil, Config{Stereo: true, IPD: 0.064, ViewportW: 0, ViewportH: 600})

		err := a.ConfigureViews(head)
		require.Error(t, err)
		assert.Len(t, rec.Cameras, 2)
		assert.Nil(t, rec.Mask)
	})
}

func TestNewAssemblerDefaults(t *testing.T) {
	t.Parallel()

	a := NewAssembler(NewRecorder(), nil, nil, Config{})
	assert.Equal(t, 0, a.PlaceAnchors(mappedOutcome()), "nil snapshot behaves as empty")
	assert.False(t, a.Stereo())
}
