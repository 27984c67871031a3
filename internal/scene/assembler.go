// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scene

import (
	"errors"
	"log"

	"github.com/relabs-tech/anchor_stage/internal/assets"
	"github.com/relabs-tech/anchor_stage/internal/relocal"
	"github.com/relabs-tech/anchor_stage/internal/room"
	"github.com/relabs-tech/anchor_stage/internal/stereo"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// HazardBinding ties a hazard object to a primary anchor: the hazard's
// world transform is always re-derived from the primary's current
// transform plus this fixed offset in the primary's local frame. The
// persisted hazard anchor, if any, is deliberately ignored: world
// coordinates can drift between sessions even when the primary anchor
// relocalizes, and deriving from the live primary keeps the relative
// geometry of the two objects exact.
type HazardBinding struct {
	Name    string
	Primary string
	Offset  transform.Vec3
}

// Config is the assembler's explicit configuration. The stereo flag is
// passed in rather than read from ambient state; changes arrive as
// discrete SetStereo calls.
type Config struct {
	Hazards   []HazardBinding
	Stereo    bool
	IPD       float64
	ViewportW float64
	ViewportH float64
}

// Assembler orchestrates placement and view configuration against the
// scene graph. All methods run on the session goroutine.
type Assembler struct {
	graph Graph
	snap  *room.Snapshot
	lib   *assets.Library
	cfg   Config
}

// NewAssembler builds an assembler over a loaded snapshot. lib may be nil
// when no asset library is configured; objects are then placed at scale 1.
func NewAssembler(graph Graph, snap *room.Snapshot, lib *assets.Library, cfg Config) *Assembler {
	if snap == nil {
		snap = room.Empty()
	}
	if cfg.IPD == 0 {
		cfg.IPD = stereo.DefaultIPD
	}
	return &Assembler{graph: graph, snap: snap, lib: lib, cfg: cfg}
}

// PlaceAnchors emits one placement command per object once relocalization
// has settled. Anchored objects are placed at their stored pose; bound
// hazards are re-derived from the primary's current pose, falling back to
// identity (logged) when the primary was never loaded. An empty snapshot
// emits zero commands and is still a ready scene. Returns the number of
// placements emitted.
func (a *Assembler) PlaceAnchors(out relocal.Outcome) int {
	if !out.Aligned {
		log.Printf("scene: placing without confirmed anchor alignment (%s)", out.State)
	}
	if len(a.snap.Anchors) == 0 {
		log.Printf("scene: snapshot has no anchors, nothing to place")
		return 0
	}

	hazardNames := make(map[string]bool, len(a.cfg.Hazards))
	for _, h := range a.cfg.Hazards {
		hazardNames[h.Name] = true
	}

	placed := 0
	for name, anchor := range a.snap.Anchors {
		if hazardNames[name] {
			// Stale persisted pose; the binding below re-derives it.
			log.Printf("scene: ignoring persisted pose for bound hazard %q", name)
			continue
		}
		if a.place(name, anchor.Pose) {
			placed++
		}
	}

	for _, h := range a.cfg.Hazards {
		primary := transform.Identity()
		if p, ok := a.snap.Anchor(h.Primary); ok {
			primary = p.Pose
		} else {
			log.Printf("scene: primary anchor %q not loaded, placing %q from identity", h.Primary, h.Name)
		}
		if a.place(h.Name, transform.Relative(primary, h.Offset)) {
			placed++
		}
	}
	return placed
}

// place emits a single placement, resolving the object's scale factor.
// A missing asset skips that object only.
func (a *Assembler) place(name string, pose transform.RigidTransform) bool {
	scale := 1.0
	if a.lib != nil {
		s, err := a.lib.ScaleFor(name)
		if errors.Is(err, assets.ErrMissing) {
			log.Printf("scene: no mesh for %q, skipping placement", name)
			return false
		}
		if err != nil {
			log.Printf("scene: scale for %q: %v, skipping placement", name, err)
			return false
		}
		scale = s
	}
	a.graph.PlaceObject(name, pose, scale)
	return true
}

// ConfigureViews emits the camera (and in stereo mode mask) configuration
// for the current head transform. The previous configuration is fully
// replaced, so re-invoking with the same mode is idempotent. A config
// error on one render path does not suppress the other.
func (a *Assembler) ConfigureViews(head transform.RigidTransform) error {
	a.graph.ClearCameras()

	if !a.cfg.Stereo {
		a.graph.SetCameraPose(EyeMono, head)
		return nil
	}

	var errs []error

	rig, err := stereo.BuildRig(head, a.cfg.IPD)
	if err != nil {
		log.Printf("scene: stereo rig: %v", err)
		errs = append(errs, err)
	} else {
		a.graph.SetCameraPose(EyeLeft, rig.Left)
		a.graph.SetCameraPose(EyeRight, rig.Right)
	}

	mask, err := stereo.BuildMask(a.cfg.ViewportW, a.cfg.ViewportH)
	if err != nil {
		log.Printf("scene: lens mask: %v", err)
		errs = append(errs, err)
	} else {
		a.graph.SetMask(mask)
	}

	return errors.Join(errs...)
}

// SetStereo switches display mode and re-runs view configuration.
func (a *Assembler) SetStereo(on bool, head transform.RigidTransform) error {
	a.cfg.Stereo = on
	return a.ConfigureViews(head)
}

// SetViewport records a new viewport size and, in stereo mode, rebuilds
// the mask. The mask is never carried across a size change.
func (a *Assembler) SetViewport(w, h float64, head transform.RigidTransform) error {
	a.cfg.ViewportW = w
	a.cfg.ViewportH = h
	return a.ConfigureViews(head)
}

// Stereo reports the active display mode.
func (a *Assembler) Stereo() bool {
	return a.cfg.Stereo
}
