// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package relocal

import (
	"context"
	"fmt"
	"time"
)

// Confidence is the coarse mapping-confidence signal reported by the
// tracking session, from no alignment information at all up to a fully
// mapped frame.
type Confidence int

const (
	ConfidenceNotAvailable Confidence = iota
	ConfidenceLimited
	ConfidenceExtending
	ConfidenceMapped
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceNotAvailable:
		return "not_available"
	case ConfidenceLimited:
		return "limited"
	case ConfidenceExtending:
		return "extending"
	case ConfidenceMapped:
		return "mapped"
	}
	return fmt.Sprintf("confidence(%d)", int(c))
}

// ParseConfidence parses the wire form produced by String.
func ParseConfidence(s string) (Confidence, error) {
	switch s {
	case "not_available":
		return ConfidenceNotAvailable, nil
	case "limited":
		return ConfidenceLimited, nil
	case "extending":
		return ConfidenceExtending, nil
	case "mapped":
		return ConfidenceMapped, nil
	}
	return ConfidenceNotAvailable, fmt.Errorf("unknown mapping confidence %q", s)
}

// State of the relocalization machine. Mapped and TimedOut are terminal.
type State int

const (
	StateIdle State = iota
	StateRelocalizing
	StateMapped
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRelocalizing:
		return "relocalizing"
	case StateMapped:
		return "mapped"
	case StateTimedOut:
		return "timed_out"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultDeadline is how long a session waits for the frame to map before
// giving up and placing with whatever anchors were loaded.
const DefaultDeadline = 10 * time.Second

// Outcome is the single settle decision of a session. Aligned is false for
// the timed-out case: placement proceeds without a confirmed anchor
// alignment.
type Outcome struct {
	State   State
	Aligned bool
}

// Machine decides exactly once per session when to trigger placement.
// It is not safe for concurrent use: samples and the deadline must be
// delivered from the same goroutine (Run does this), which is what makes
// the single-shot settle guarantee race-free without a lock.
type Machine struct {
	state   State
	settled bool
}

func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

func (m *Machine) State() State {
	return m.state
}

// Start advances Idle to Relocalizing. No-op in any other state.
func (m *Machine) Start() {
	if m.state == StateIdle {
		m.state = StateRelocalizing
	}
}

// Observe feeds one mapping-confidence sample. While relocalizing, an
// Extending or Mapped sample settles the machine as Mapped; Limited and
// NotAvailable keep it waiting. After settling, further samples are no-ops.
// The bool reports whether this call produced the settle decision.
func (m *Machine) Observe(c Confidence) (Outcome, bool) {
	if m.state != StateRelocalizing || m.settled {
		return Outcome{}, false
	}
	if c == ConfidenceExtending || c == ConfidenceMapped {
		m.state = StateMapped
		m.settled = true
		return Outcome{State: StateMapped, Aligned: true}, true
	}
	return Outcome{}, false
}

// Expire fires the deadline. While relocalizing it settles the machine as
// TimedOut; once settled it is a no-op, so a late timer cannot produce a
// second settle.
func (m *Machine) Expire() (Outcome, bool) {
	if m.state != StateRelocalizing || m.settled {
		return Outcome{}, false
	}
	m.state = StateTimedOut
	m.settled = true
	return Outcome{State: StateTimedOut, Aligned: false}, true
}

// Run starts the machine and drives it from the sample channel plus a
// one-shot deadline until it settles, serializing both inputs onto the
// calling goroutine. A closed sample channel leaves only the deadline.
// Cancelling the context tears down without settling; the stopped timer
// cannot fire afterwards.
func (m *Machine) Run(ctx context.Context, samples <-chan Confidence, deadline time.Duration) (Outcome, error) {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	m.Start()

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Outcome{}, ctx.Err()
		case c, ok := <-samples:
			if !ok {
				samples = nil
				continue
			}
			if out, settled := m.Observe(c); settled {
				return out, nil
			}
		case <-timer.C:
			if out, settled := m.Expire(); settled {
				return out, nil
			}
		}
	}
}
