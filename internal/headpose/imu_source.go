package headpose

import (
	"fmt"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"
)

type imuSource struct {
	imu *mpu9250.MPU9250
}

// NewIMUSource initializes the head-mounted MPU9250 over SPI and returns a
// Source that derives roll/pitch from the accelerometer. Yaw stays 0 until
// the magnetometer is fused; position stays at the origin (the tracker
// supplies translation when a full 6DoF source is attached).
func NewIMUSource(spiDevice, csPin string) (Source, error) {
	// Initialize periph host once.
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("head IMU CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDevice, cs)
	if err != nil {
		return nil, fmt.Errorf("head IMU SPI transport: %w", err)
	}

	imu, err := mpu9250.New(*tr)
	if err != nil {
		return nil, fmt.Errorf("head IMU new device: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("head IMU init: %w", err)
	}

	if err := imu.Calibrate(); err != nil {
		return nil, fmt.Errorf("head IMU calibrate: %w", err)
	}

	return &imuSource{imu: imu}, nil
}

// Next reads the accelerometer and computes a tilt-only head pose.
func (s *imuSource) Next() (Pose, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Pose{}, fmt.Errorf("head IMU acc X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Pose{}, fmt.Errorf("head IMU acc Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Pose{}, fmt.Errorf("head IMU acc Z: %w", err)
	}

	// Relative ratios are enough for tilt; no unit conversion needed.
	return PoseFromAccel(float64(ax), float64(ay), float64(az)), nil
}
