package app

import (
	"encoding/json"
	"fmt"
	"image/color"
	"log"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/scene"
	"github.com/relabs-tech/anchor_stage/internal/track"
	"github.com/relabs-tech/anchor_stage/internal/transform"
)

const (
	previewWidth  = 640
	previewHeight = 480
	// pixels per metre of the top-down view
	previewScale = 40.0
)

// previewerGame renders a live top-down view of the assembled scene:
// placed objects, camera poses and the lens mask outline. The scene
// arrives over the same retained topics every other viewer consumes.
type previewerGame struct {
	mu sync.Mutex

	rec        *scene.Recorder
	state      sessionState
	haveState  bool
	sample     track.Sample
	haveSample bool
}

func (g *previewerGame) Update() error {
	return nil
}

func (g *previewerGame) Draw(screen *ebiten.Image) {
	g.mu.Lock()
	defer g.mu.Unlock()

	screen.Fill(color.RGBA{R: 0x10, G: 0x12, B: 0x18, A: 0xFF})

	// World origin at the screen centre, X right, Z down.
	toScreen := func(x, z float64) (float32, float32) {
		return float32(previewWidth/2 + x*previewScale),
			float32(previewHeight/2 + z*previewScale)
	}

	// Grid lines every metre
	grid := color.RGBA{R: 0x20, G: 0x24, B: 0x30, A: 0xFF}
	for m := -8; m <= 8; m++ {
		sx, _ := toScreen(float64(m), 0)
		_, sz := toScreen(0, float64(m))
		vector.StrokeLine(screen, sx, 0, sx, previewHeight, 1, grid, false)
		vector.StrokeLine(screen, 0, sz, previewWidth, sz, 1, grid, false)
	}

	// Placed objects as filled circles sized by their scale
	for name, obj := range g.rec.Objects {
		x, y := toScreen(obj.Pose.T.X, obj.Pose.T.Z)
		r := float32(obj.Scale * previewScale / 2)
		if r < 4 {
			r = 4
		}
		vector.DrawFilledCircle(screen, x, y, r, color.RGBA{R: 0x3A, G: 0x8F, B: 0xD9, A: 0xFF}, true)
		ebitenutil.DebugPrintAt(screen, name, int(x)+6, int(y)-6)
	}

	// Camera poses as small squares with their forward axis (-Z of the
	// rotation) drawn as a short line
	for eye, pose := range g.rec.Cameras {
		x, y := toScreen(pose.T.X, pose.T.Z)
		vector.DrawFilledRect(screen, x-4, y-4, 8, 8, color.RGBA{R: 0xE8, G: 0xC1, B: 0x4A, A: 0xFF}, false)
		fwd := pose.ApplyVector(transform.Vec3{Z: -1})
		fx, fy := toScreen(pose.T.X+fwd.X*0.5, pose.T.Z+fwd.Z*0.5)
		vector.StrokeLine(screen, x, y, fx, fy, 2, color.RGBA{R: 0xE8, G: 0xC1, B: 0x4A, A: 0xFF}, true)
		ebitenutil.DebugPrintAt(screen, eye, int(x)+6, int(y)+4)
	}

	// Lens mask outline scaled down into the top-right corner
	if m := g.rec.Mask; m != nil {
		const inset = 8
		scale := 120.0 / m.Width
		ox := float32(previewWidth - inset - 120)
		oy := float32(inset)
		vector.StrokeRect(screen, ox, oy, float32(m.Width*scale), float32(m.Height*scale), 1,
			color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xFF}, false)
		for _, c := range []struct{ x, y, r float64 }{
			{m.Left.X, m.Left.Y, m.Left.R},
			{m.Right.X, m.Right.Y, m.Right.R},
		} {
			vector.StrokeCircle(screen, ox+float32(c.x*scale), oy+float32(c.y*scale),
				float32(c.r*scale), 1, color.RGBA{R: 0xB0, G: 0xB0, B: 0xB0, A: 0xFF}, true)
		}
	}

	// Status line
	status := "waiting for session state"
	if g.haveState {
		mode := "mono"
		if g.state.Stereo {
			mode = "stereo"
		}
		status = fmt.Sprintf("%s  room=%s  placed=%d  %s", g.state.State, g.state.Room, g.state.Placed, mode)
	}
	if g.haveSample {
		status += "  conf=" + g.sample.Confidence
	}
	ebitenutil.DebugPrintAt(screen, status, 8, previewHeight-18)
}

func (g *previewerGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return previewWidth, previewHeight
}

// RunPreviewer opens a desktop window with a live top-down view of the
// scene. It blocks until the window closes.
func RunPreviewer(cfg *config.Config) error {
	game := &previewerGame{rec: scene.NewRecorder()}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDPreviewer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("previewer: connected to MQTT broker at %s", cfg.MQTTBroker)

	prefix := cfg.TopicScenePrefix
	token := client.Subscribe(prefix+"/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		game.mu.Lock()
		defer game.mu.Unlock()
		if scene.ApplyRetained(game.rec, prefix, msg.Topic(), msg.Payload()) {
			return
		}
		if msg.Topic() == prefix+"/state" {
			var st sessionState
			if err := json.Unmarshal(msg.Payload(), &st); err != nil {
				return
			}
			game.state = st
			game.haveState = true
		}
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicTracking, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s track.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			return
		}
		game.mu.Lock()
		game.sample = s
		game.haveSample = true
		game.mu.Unlock()
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	log.Printf("previewer: subscribed to %s/# and %s", prefix, cfg.TopicTracking)

	ebiten.SetWindowTitle("anchor-stage previewer")
	ebiten.SetWindowSize(previewWidth, previewHeight)
	ebiten.SetTPS(30)
	return ebiten.RunGame(game)
}
