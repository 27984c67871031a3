package app

import (
	"encoding/json"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/track"
)

// displayData holds the latest data shown on the status display.
type displayData struct {
	mu sync.RWMutex

	state      sessionState
	haveState  bool
	sample     track.Sample
	haveSample bool
}

// RunDisplay drives the SSD1306 status display: relocalization state on
// top, placement summary and tracking confidence below.
func RunDisplay(cfg *config.Config) error {
	// Initialize periph
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	// Open I2C bus
	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	data := &displayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	stateToken := client.Subscribe(cfg.TopicScenePrefix+"/state", 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st sessionState
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: state unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.state = st
		data.haveState = true
		data.mu.Unlock()
	})
	if stateToken.Wait(); stateToken.Error() != nil {
		return stateToken.Error()
	}

	trackToken := client.Subscribe(cfg.TopicTracking, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s track.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			return
		}
		data.mu.Lock()
		data.sample = s
		data.haveSample = true
		data.mu.Unlock()
	})
	if trackToken.Wait(); trackToken.Error() != nil {
		return trackToken.Error()
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for range ticker.C {
		data.mu.RLock()
		st, haveState := data.state, data.haveState
		sample, haveSample := data.sample, data.haveSample
		data.mu.RUnlock()

		if err := drawStatus(dev, st, haveState, sample, haveSample); err != nil {
			log.Printf("display: draw error: %v", err)
		}
	}
	return nil
}

func drawStatus(dev *ssd1306.Dev, st sessionState, haveState bool, sample track.Sample, haveSample bool) error {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	// Blank image
	for i := range img.Pix {
		img.Pix[i] = 0
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	if !haveState {
		drawer.Dot = fixed.P(0, 26)
		drawer.DrawBytes([]byte("anchor-stage"))
		drawer.Dot = fixed.P(0, 39)
		drawer.DrawBytes([]byte("Waiting..."))
		return dev.Draw(dev.Bounds(), img, image.Point{})
	}

	drawer.Dot = fixed.P(0, 13)
	drawer.DrawBytes([]byte(st.State))

	drawer.Dot = fixed.P(0, 26)
	drawer.DrawBytes([]byte(fmt.Sprintf("room %s", truncate(st.Room, 12))))

	drawer.Dot = fixed.P(0, 39)
	mode := "mono"
	if st.Stereo {
		mode = "stereo"
	}
	drawer.DrawBytes([]byte(fmt.Sprintf("placed %d  %s", st.Placed, mode)))

	if haveSample {
		drawer.Dot = fixed.P(0, 52)
		drawer.DrawBytes([]byte(truncate(sample.Confidence, 18)))
	}

	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
