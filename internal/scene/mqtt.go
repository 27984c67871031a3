package scene

import (
	"encoding/json"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/anchor_stage/internal/stereo"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// MQTTGraph publishes scene commands as retained JSON messages, one topic
// per object/eye under a common prefix. Retained delivery gives the
// replace-not-append semantics the assembler relies on: a viewer that
// attaches late sees exactly the current scene, and re-publishing a key
// overwrites the previous command.
type MQTTGraph struct {
	client mqtt.Client
	prefix string // e.g. "anchor/scene"
}

func NewMQTTGraph(client mqtt.Client, prefix string) *MQTTGraph {
	return &MQTTGraph{client: client, prefix: prefix}
}

func (g *MQTTGraph) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("scene: marshal for %s: %v", topic, err)
		return
	}
	if token := g.client.Publish(topic, 0, true, payload); token.Wait() && token.Error() != nil {
		log.Printf("scene: publish %s: %v", topic, token.Error())
	}
}

// clear removes a retained message by publishing an empty retained payload.
func (g *MQTTGraph) clear(topic string) {
	if token := g.client.Publish(topic, 0, true, []byte{}); token.Wait() && token.Error() != nil {
		log.Printf("scene: clear %s: %v", topic, token.Error())
	}
}

func (g *MQTTGraph) PlaceObject(name string, pose transform.RigidTransform, scale float64) {
	g.publish(g.prefix+"/object/"+name, PlacedObject{Name: name, Pose: pose, Scale: scale})
}

func (g *MQTTGraph) SetCameraPose(eye string, pose transform.RigidTransform) {
	g.publish(g.prefix+"/camera/"+eye, pose)
}

func (g *MQTTGraph) SetMask(mask stereo.Mask) {
	g.publish(g.prefix+"/mask", mask)
}

func (g *MQTTGraph) ClearCameras() {
	for _, eye := range []string{EyeMono, EyeLeft, EyeRight} {
		g.clear(g.prefix + "/camera/" + eye)
	}
	g.clear(g.prefix + "/mask")
}

// ApplyRetained folds one retained scene message back into a Recorder.
// An empty payload clears the entry, mirroring how MQTTGraph deletes
// retained messages. Topics outside the object/camera/mask namespace are
// ignored and reported via the return value.
func ApplyRetained(rec *Recorder, prefix, topic string, payload []byte) bool {
	rest := strings.TrimPrefix(topic, prefix+"/")

	switch {
	case rest == "mask":
		if len(payload) == 0 {
			rec.Mask = nil
			return true
		}
		var m stereo.Mask
		if err := json.Unmarshal(payload, &m); err != nil {
			log.Printf("scene: mask unmarshal error: %v", err)
			return true
		}
		rec.SetMask(m)
		return true

	case strings.HasPrefix(rest, "object/"):
		name := strings.TrimPrefix(rest, "object/")
		if len(payload) == 0 {
			delete(rec.Objects, name)
			return true
		}
		var obj PlacedObject
		if err := json.Unmarshal(payload, &obj); err != nil {
			log.Printf("scene: object unmarshal error: %v", err)
			return true
		}
		rec.PlaceObject(name, obj.Pose, obj.Scale)
		return true

	case strings.HasPrefix(rest, "camera/"):
		eye := strings.TrimPrefix(rest, "camera/")
		if len(payload) == 0 {
			delete(rec.Cameras, eye)
			return true
		}
		var pose transform.RigidTransform
		if err := json.Unmarshal(payload, &pose); err != nil {
			log.Printf("scene: camera unmarshal error: %v", err)
			return true
		}
		rec.SetCameraPose(eye, pose)
		return true
	}
	return false
}
