// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/anchor_stage/internal/assets"
	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/relocal"
	"github.com/relabs-tech/anchor_stage/internal/room"
	"github.com/relabs-tech/anchor_stage/internal/scene"
	"github.com/relabs-tech/anchor_stage/internal/track"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// maxSampleAge bounds how old a tracking sample may be and still drive
// the settle decision. Anything older is a leftover (broker-retained,
// replayed) and is not live evidence of alignment.
const maxSampleAge = 2 * time.Second

// sessionState is the retained status payload published under
// <scene prefix>/state for the web viewer, console and status display.
type sessionState struct {
	State   string `json:"state"`
	Aligned bool   `json:"aligned"`
	Room    string `json:"room"`
	Anchors int    `json:"anchors"`
	Placed  int    `json:"placed"`
	Stereo  bool   `json:"stereo"`
}

// RunSession is the session runner: it loads the room, consumes the
// tracking stream, runs the relocalization machine against the deadline
// and, once settled, drives the scene assembler. All state transitions and
// scene emission happen on this goroutine; MQTT callbacks only feed
// channels, which is what serializes samples and the deadline into a
// single settle point.
func RunSession(cfg *config.Config) error {
	log.Println("starting anchor-stage session runner")

	// --- 1) Load the room snapshot ---
	store, err := room.OpenStore(cfg.RoomDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	snap := loadSnapshot(store, cfg.RoomID)
	if len(snap.WorldMap) > 0 {
		// The blob is opaque here; the tracking side consumes it to seed
		// relocalization.
		log.Printf("session: world map blob is %d bytes", len(snap.WorldMap))
	}

	// --- 2) Asset library (optional) ---
	var lib *assets.Library
	if cfg.AssetsDir != "" {
		lib = assets.NewLibrary(cfg.AssetsDir, cfg.TargetSizes, cfg.TargetSizeDefault)
	} else {
		log.Println("session: no ASSETS_DIR configured, placing at scale 1")
	}

	// --- 3) Connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDSession)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("session: connected to MQTT broker at %s", cfg.MQTTBroker)

	// --- 4) Subscribe to tracking samples and mode toggles ---
	// Buffered channels; the sensor stream may outrun us, dropping a
	// sample is fine because the next one arrives within an interval.
	samples := make(chan track.Sample, 16)
	token := client.Subscribe(cfg.TopicTracking, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s track.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("session: tracking payload unmarshal error: %v", err)
			return
		}
		select {
		case samples <- s:
		default:
		}
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}

	modes := make(chan bool, 4)
	token = client.Subscribe(cfg.TopicMode, 0, func(_ mqtt.Client, msg mqtt.Message) {
		stereoOn, ok := parseMode(msg.Payload())
		if !ok {
			log.Printf("session: unknown display mode %q", msg.Payload())
			return
		}
		select {
		case modes <- stereoOn:
		default:
		}
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}

	viewports := make(chan viewportMsg, 4)
	token = client.Subscribe(cfg.TopicViewport, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v viewportMsg
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Printf("session: viewport payload unmarshal error: %v", err)
			return
		}
		select {
		case viewports <- v:
		default:
		}
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}

	// --- 5) Assemble on settle ---
	graph := scene.NewMQTTGraph(client, cfg.TopicScenePrefix)
	asm := scene.NewAssembler(graph, snap, lib, scene.Config{
		Hazards: []scene.HazardBinding{{
			Name:    cfg.HazardName,
			Primary: cfg.PrimaryAnchor,
			Offset:  cfg.HazardOffset,
		}},
		Stereo:    cfg.Stereo,
		IPD:       cfg.IPD,
		ViewportW: cfg.ViewportWidth,
		ViewportH: cfg.ViewportHeight,
	})

	machine := relocal.NewMachine()
	machine.Start()

	deadline := time.NewTimer(time.Duration(cfg.RelocDeadlineMS) * time.Millisecond)
	defer deadline.Stop()

	state := sessionState{
		State:   machine.State().String(),
		Room:    snap.Name,
		Anchors: len(snap.Anchors),
		Stereo:  cfg.Stereo,
	}
	publishState(client, cfg.TopicScenePrefix+"/state", state)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	head := transform.Identity()
	settle := func(out relocal.Outcome) {
		state.State = out.State.String()
		state.Aligned = out.Aligned
		state.Placed = asm.PlaceAnchors(out)
		if err := asm.ConfigureViews(head); err != nil {
			log.Printf("session: view configuration: %v", err)
		}
		publishState(client, cfg.TopicScenePrefix+"/state", state)
		log.Printf("session: settled %s, placed %d objects", out.State, state.Placed)
	}

	for {
		select {
		case <-sigCh:
			// Unsubscribe and disarm the deadline before returning so
			// neither can fire into a torn-down session.
			log.Println("session: shutting down")
			deadline.Stop()
			client.Unsubscribe(cfg.TopicTracking, cfg.TopicMode, cfg.TopicViewport)
			return nil

		case s := <-samples:
			if stale, err := staleSample(s, time.Now()); stale {
				if err != nil {
					log.Printf("session: dropping sample with bad timestamp: %v", err)
				} else {
					log.Printf("session: dropping stale sample from %s", s.Time)
				}
				continue
			}

			if ht, err := s.HeadTransform(); err != nil {
				log.Printf("session: dropping head pose: %v", err)
			} else {
				head = ht
			}

			c, err := s.MappingConfidence()
			if err != nil {
				log.Printf("session: dropping sample: %v", err)
				continue
			}
			if out, settled := machine.Observe(c); settled {
				settle(out)
			}

		case <-deadline.C:
			if out, settled := machine.Expire(); settled {
				settle(out)
			}

		case stereoOn := <-modes:
			state.Stereo = stereoOn
			if err := asm.SetStereo(stereoOn, head); err != nil {
				log.Printf("session: mode change: %v", err)
			}
			publishState(client, cfg.TopicScenePrefix+"/state", state)
			log.Printf("session: display mode now %s", modeName(stereoOn))

		case v := <-viewports:
			// The mask is a pure function of the viewport; rebuild it
			// rather than carrying the old one across the size change.
			if err := asm.SetViewport(v.Width, v.Height, head); err != nil {
				log.Printf("session: viewport change: %v", err)
			}
			log.Printf("session: viewport now %.0fx%.0f", v.Width, v.Height)
		}
	}
}

// loadSnapshot loads the requested room, or the most recent one when no ID
// is configured. Missing or corrupt rooms fall back to an empty snapshot
// and the session proceeds degraded.
func loadSnapshot(store *room.Store, roomID string) *room.Snapshot {
	var (
		snap *room.Snapshot
		err  error
	)
	if roomID != "" {
		snap, err = store.Load(roomID)
	} else {
		snap, err = store.LoadLatest()
	}
	if err != nil {
		log.Printf("session: room load failed (%v), proceeding with empty snapshot", err)
		return room.Empty()
	}
	log.Printf("session: loaded room %q (%s) with %d anchors", snap.Name, snap.ID, len(snap.Anchors))
	return snap
}

func publishState(client mqtt.Client, topic string, state sessionState) {
	payload, err := json.Marshal(state)
	if err != nil {
		log.Printf("session: state marshal error: %v", err)
		return
	}
	if token := client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("session: state publish error: %v", token.Error())
	}
}

func modeName(stereo bool) string {
	if stereo {
		return "stereo"
	}
	return "mono"
}

// parseMode decodes a mode-topic payload; ok is false for anything but
// the two known modes.
func parseMode(payload []byte) (stereo, ok bool) {
	switch string(payload) {
	case "stereo":
		return true, true
	case "mono":
		return false, true
	}
	return false, false
}

// staleSample reports whether a tracking sample is too old to feed the
// relocalization machine. A missing or malformed timestamp counts as
// stale: a sample of unknown age must never settle the session.
func staleSample(s track.Sample, now time.Time) (bool, error) {
	at, err := s.SampledAt()
	if err != nil {
		return true, err
	}
	return now.Sub(at) > maxSampleAge, nil
}
