package room

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/relabs-tech/anchor_stage/internal/geo"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// Anchor is a named rigid transform locating an object in the captured
// world coordinate frame. Immutable once loaded.
type Anchor struct {
	Name string                   `json:"name"`
	Pose transform.RigidTransform `json:"pose"`
}

// Snapshot is one captured room: the named anchors plus the opaque
// world-map blob handed back to the tracking session for relocalization.
// Read-only after load; owned by the session that loaded it.
type Snapshot struct {
	ID       string
	Name     string
	Anchors  map[string]Anchor
	WorldMap []byte
	Geo      *geo.Fix
	SavedAt  time.Time
}

// Empty returns a snapshot with no anchors and no world map. Sessions fall
// back to this when a room is missing or corrupt and proceed degraded.
func Empty() *Snapshot {
	return &Snapshot{Anchors: map[string]Anchor{}}
}

// Anchor looks up an anchor by name.
func (s *Snapshot) Anchor(name string) (Anchor, bool) {
	a, ok := s.Anchors[name]
	return a, ok
}

// encodeAnchors serializes the anchor set for storage.
func encodeAnchors(anchors map[string]Anchor) ([]byte, error) {
	list := make([]Anchor, 0, len(anchors))
	for _, a := range anchors {
		list = append(list, a)
	}
	return json.Marshal(list)
}

// decodeAnchors parses a stored anchor set. Every pose is checked for
// orthonormality; an anchor failing the check is dropped with a log line
// and the rest of the snapshot stays usable.
func decodeAnchors(data []byte) (map[string]Anchor, error) {
	var list []Anchor
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("corrupt anchor data: %w", err)
	}
	anchors := make(map[string]Anchor, len(list))
	for _, a := range list {
		if a.Name == "" {
			log.Printf("room: dropping unnamed anchor")
			continue
		}
		if err := a.Pose.Validate(); err != nil {
			log.Printf("room: dropping anchor %q: %v", a.Name, err)
			continue
		}
		anchors[a.Name] = a
	}
	return anchors, nil
}
