package stereo

import (
	"errors"
	"fmt"
	"math"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// ErrIPD is the configuration error for a non-positive or non-finite
// interpupillary distance. It is never silently clamped.
var ErrIPD = errors.New("interpupillary distance must be a positive finite value")

// DefaultIPD is the adult average interpupillary distance in metres.
const DefaultIPD = 0.064

// Rig is a two-eye camera rig derived from a head transform. The eyes have
// no lifecycle of their own: they are recomputed from head and IPD on every
// build.
type Rig struct {
	Head  transform.RigidTransform `json:"head"`
	IPD   float64                  `json:"ipd"`
	Left  transform.RigidTransform `json:"left"`
	Right transform.RigidTransform `json:"right"`
}

// BuildRig derives the left and right eye transforms: each eye is the head
// transform composed with a lateral half-IPD offset in the head's local
// frame, so both eyes inherit the head's full rotation.
func BuildRig(head transform.RigidTransform, ipd float64) (Rig, error) {
	if !(ipd > 0) || math.IsInf(ipd, 0) {
		return Rig{}, fmt.Errorf("%w: got %v", ErrIPD, ipd)
	}
	return Rig{
		Head:  head,
		IPD:   ipd,
		Left:  transform.Compose(head, transform.Translation(transform.Vec3{X: -ipd / 2})),
		Right: transform.Compose(head, transform.Translation(transform.Vec3{X: ipd / 2})),
	}, nil
}
