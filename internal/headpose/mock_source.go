// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package headpose

import (
	"math"
	"time"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

type mockSource struct {
	start time.Time
}

// NewMockSource creates a mock head-pose source that generates smooth
// changing values: a gentle head sway at standing eye height.
func NewMockSource() Source {
	return &mockSource{start: time.Now()}
}

func (m *mockSource) Next() (Pose, error) {
	elapsed := time.Since(m.start).Seconds()

	return Pose{
		Roll:  3 * math.Sin(elapsed*0.9),
		Pitch: 8 * math.Cos(elapsed*0.7),
		Yaw:   25 * math.Sin(elapsed*0.3),
		Position: transform.Vec3{
			X: 0.2 * math.Sin(elapsed*0.4),
			Y: 1.7,
			Z: 0.2 * math.Cos(elapsed*0.4),
		},
	}, nil
}
