package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/room"
	"github.com/relabs-tech/anchor_stage/internal/scene"
	"github.com/relabs-tech/anchor_stage/internal/stereo"
	"github.com/relabs-tech/anchor_stage/internal/track"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// wsMessage is what a viewer may send us over the websocket.
type wsMessage struct {
	Action string  `json:"action"` // set_mode, set_viewport
	Stereo bool    `json:"stereo,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// viewportMsg is the retained payload carrying the viewer's viewport size.
type viewportMsg struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// sceneEvent is one scene-graph change pushed to websocket viewers.
type sceneEvent struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// webState caches the latest scene so HTTP handlers can answer without
// waiting for the broker.
type webState struct {
	mu         sync.RWMutex
	rec        *scene.Recorder
	session    json.RawMessage
	lastSample track.Sample
	haveSample bool

	connsMu sync.Mutex
	conns   map[*websocket.Conn]chan []byte
}

// RunWeb serves the viewer backend: latest scene state as JSON, the lens
// mask as webp, the room catalog, and a websocket stream of scene events.
func RunWeb(cfg *config.Config) error {
	state := &webState{
		rec:   scene.NewRecorder(),
		conns: map[*websocket.Conn]chan []byte{},
	}

	store, err := room.OpenStore(cfg.RoomDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Subscribe to the scene prefix and the tracking stream
	prefix := cfg.TopicScenePrefix
	token := client.Subscribe(prefix+"/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		state.applyScene(prefix, msg.Topic(), msg.Payload())
		state.broadcast(msg.Topic(), msg.Payload())
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicTracking, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s track.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: tracking unmarshal error: %v", err)
			return
		}
		state.mu.Lock()
		state.lastSample = s
		state.haveSample = true
		state.mu.Unlock()
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s/# and %s", prefix, cfg.TopicTracking)

	// 3) JSON API endpoints
	http.HandleFunc("/api/scene", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"objects": state.rec.Objects,
			"cameras": state.rec.Cameras,
			"mask":    state.rec.Mask,
			"state":   state.session,
		})
		if err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/tracking", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		defer state.mu.RUnlock()

		if !state.haveSample {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(state.lastSample); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		infos, err := store.List()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(infos); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Rendered lens mask for the active viewport
	http.HandleFunc("/mask.webp", func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		mask := state.rec.Mask
		state.mu.RUnlock()

		if mask == nil {
			// Not in stereo mode; render for the configured viewport so
			// the page always has something to show.
			m, err := stereo.BuildMask(cfg.ViewportWidth, cfg.ViewportHeight)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			mask = &m
		}

		w.Header().Set("Content-Type", "image/webp")
		if err := nativewebp.Encode(w, mask.Render(), nil); err != nil {
			log.Printf("web: webp encode error: %v", err)
		}
	})

	// 5) Websocket stream of scene events; viewers may toggle the mode
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		send := make(chan []byte, 32)
		state.addConn(conn, send)
		defer state.removeConn(conn)

		go func() {
			for payload := range send {
				if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
					return
				}
			}
		}()

		for {
			var msg wsMessage
			if err := conn.ReadJSON(&msg); err != nil {
				log.Printf("web: websocket read error: %v", err)
				return
			}
			switch msg.Action {
			case "set_mode":
				mode := "mono"
				if msg.Stereo {
					mode = "stereo"
				}
				client.Publish(cfg.TopicMode, 0, true, []byte(mode))
				log.Printf("web: viewer requested %s mode", mode)
			case "set_viewport":
				payload, err := json.Marshal(viewportMsg{Width: msg.Width, Height: msg.Height})
				if err != nil {
					log.Printf("web: viewport marshal error: %v", err)
					continue
				}
				client.Publish(cfg.TopicViewport, 0, true, payload)
				log.Printf("web: viewer viewport now %.0fx%.0f", msg.Width, msg.Height)
			default:
				log.Printf("web: unknown websocket action %q", msg.Action)
			}
		}
	})

	// 6) Static files from ./web as the root
	http.Handle("/", http.FileServer(http.Dir("web")))

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}

// applyScene folds one retained scene message into the recorder. An empty
// payload clears the entry (retained-message deletion).
func (s *webState) applyScene(prefix, topic string, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scene.ApplyRetained(s.rec, prefix, topic, payload) {
		return
	}
	if strings.TrimPrefix(topic, prefix+"/") == "state" {
		if len(payload) == 0 {
			s.session = nil
			return
		}
		s.session = json.RawMessage(payload)
	}
}

func (s *webState) addConn(conn *websocket.Conn, send chan []byte) {
	s.connsMu.Lock()
	s.conns[conn] = send
	s.connsMu.Unlock()
}

func (s *webState) removeConn(conn *websocket.Conn) {
	s.connsMu.Lock()
	if send, ok := s.conns[conn]; ok {
		close(send)
		delete(s.conns, conn)
	}
	s.connsMu.Unlock()
}

// broadcast pushes a scene event to every attached viewer, dropping it for
// viewers that cannot keep up.
func (s *webState) broadcast(topic string, payload []byte) {
	if len(payload) == 0 {
		payload = []byte("null") // cleared retained entry
	}
	event, err := json.Marshal(sceneEvent{Topic: topic, Payload: json.RawMessage(payload)})
	if err != nil {
		return
	}
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for _, send := range s.conns {
		select {
		case send <- event:
		default:
		}
	}
}
