package track

import (
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/anchor_stage/internal/relocal"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// Sample is a single tracking update suitable for JSON and MQTT: the
// mapping-confidence signal plus the current head pose as quaternion and
// position.
type Sample struct {
	Confidence string `json:"confidence"` // wire form of relocal.Confidence

	Qw float64 `json:"qw"` // head orientation quaternion
	Qx float64 `json:"qx"`
	Qy float64 `json:"qy"`
	Qz float64 `json:"qz"`

	X float64 `json:"x"` // head position, metres
	Y float64 `json:"y"`
	Z float64 `json:"z"`

	Time string `json:"time"` // RFC3339
}

// MappingConfidence decodes the confidence field.
func (s Sample) MappingConfidence() (relocal.Confidence, error) {
	return relocal.ParseConfidence(s.Confidence)
}

// SampledAt parses the capture timestamp.
func (s Sample) SampledAt() (time.Time, error) {
	return time.Parse(time.RFC3339, s.Time)
}

// HeadTransform builds the head rigid transform from the sample. A
// malformed quaternion is rejected, never used.
func (s Sample) HeadTransform() (transform.RigidTransform, error) {
	return transform.FromQuat(
		quat.Number{Real: s.Qw, Imag: s.Qx, Jmag: s.Qy, Kmag: s.Qz},
		transform.Vec3{X: s.X, Y: s.Y, Z: s.Z},
	)
}
