package headpose

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// Pose is the head pose as the tracker reports it: roll/pitch/yaw in
// degrees plus a position in metres.
type Pose struct {
	Roll     float64        `json:"roll"`
	Pitch    float64        `json:"pitch"`
	Yaw      float64        `json:"yaw"`
	Position transform.Vec3 `json:"position"`
}

// Source is anything that can provide head poses over time: mock source,
// IMU source, maybe a replay source from file.
type Source interface {
	Next() (Pose, error)
}

const degToRad = math.Pi / 180

// Transform builds the head rigid transform. Rotation order is yaw about
// Y, then pitch about X, then roll about Z.
func (p Pose) Transform() transform.RigidTransform {
	r := transform.RotationY(p.Yaw * degToRad).
		Mul(transform.RotationX(p.Pitch * degToRad)).
		Mul(transform.RotationZ(p.Roll * degToRad))
	return transform.RigidTransform{R: r, T: p.Position}
}

// Quaternion returns the orientation in the wire form the tracker
// publishes, same rotation order as Transform.
func (p Pose) Quaternion() quat.Number {
	hy := p.Yaw * degToRad / 2
	hp := p.Pitch * degToRad / 2
	hr := p.Roll * degToRad / 2

	qy := quat.Number{Real: math.Cos(hy), Jmag: math.Sin(hy)}
	qx := quat.Number{Real: math.Cos(hp), Imag: math.Sin(hp)}
	qz := quat.Number{Real: math.Cos(hr), Kmag: math.Sin(hr)}
	return quat.Mul(quat.Mul(qy, qx), qz)
}

// PoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is set to 0 (no magnetometer fusion on the head tracker yet).
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func PoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad / degToRad,
		Pitch: pitchRad / degToRad,
	}
}
