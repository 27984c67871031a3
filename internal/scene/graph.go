package scene

import (
	"github.com/relabs-tech/anchor_stage/internal/stereo"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// Graph is the boundary to the external scene graph. Commands are keyed
// (object name, eye id), so re-emitting a key replaces the previous entry
// instead of appending a duplicate.
type Graph interface {
	PlaceObject(name string, pose transform.RigidTransform, scale float64)
	SetCameraPose(eye string, pose transform.RigidTransform)
	SetMask(mask stereo.Mask)
	// ClearCameras removes every camera pose and the mask, so a mode
	// change fully replaces the previous view configuration.
	ClearCameras()
}

// Eye identifiers used with SetCameraPose.
const (
	EyeMono  = "mono"
	EyeLeft  = "left"
	EyeRight = "right"
)

// PlacedObject is one object entry of the recorded scene state.
type PlacedObject struct {
	Name  string                   `json:"name"`
	Pose  transform.RigidTransform `json:"pose"`
	Scale float64                  `json:"scale"`
}

// Recorder is an in-memory Graph: it keeps the keyed scene state (served
// by the web viewer) plus an append-only command log (used by tests to
// check exactly what was emitted).
type Recorder struct {
	Objects map[string]PlacedObject
	Cameras map[string]transform.RigidTransform
	Mask    *stereo.Mask
	Log     []string
}

func NewRecorder() *Recorder {
	return &Recorder{
		Objects: map[string]PlacedObject{},
		Cameras: map[string]transform.RigidTransform{},
	}
}

func (r *Recorder) PlaceObject(name string, pose transform.RigidTransform, scale float64) {
	r.Objects[name] = PlacedObject{Name: name, Pose: pose, Scale: scale}
	r.Log = append(r.Log, "place "+name)
}

func (r *Recorder) SetCameraPose(eye string, pose transform.RigidTransform) {
	r.Cameras[eye] = pose
	r.Log = append(r.Log, "camera "+eye)
}

func (r *Recorder) SetMask(mask stereo.Mask) {
	r.Mask = &mask
	r.Log = append(r.Log, "mask")
}

func (r *Recorder) ClearCameras() {
	r.Cameras = map[string]transform.RigidTransform{}
	r.Mask = nil
	r.Log = append(r.Log, "clear_cameras")
}
