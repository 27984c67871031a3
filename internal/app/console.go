package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/geo"
	"github.com/relabs-tech/anchor_stage/internal/track"
)

// RunConsole subscribes to the tracking, scene and geo topics and prints
// every update to stdout.
func RunConsole(cfg *config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to tracking samples
	trackToken := client.Subscribe(cfg.TopicTracking, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s track.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: tracking unmarshal error: %v", err)
			return
		}
		fmt.Printf("[TRK ]  conf=%-13s pos=(%6.2f %6.2f %6.2f)\n", s.Confidence, s.X, s.Y, s.Z)
	})
	trackToken.Wait()
	if trackToken.Error() != nil {
		return trackToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicTracking)

	// Subscribe to the whole scene prefix
	sceneToken := client.Subscribe(cfg.TopicScenePrefix+"/#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		if len(msg.Payload()) == 0 {
			fmt.Printf("[SCN ]  %s cleared\n", msg.Topic())
			return
		}
		fmt.Printf("[SCN ]  %s %s\n", msg.Topic(), msg.Payload())
	})
	sceneToken.Wait()
	if sceneToken.Error() != nil {
		return sceneToken.Error()
	}
	log.Printf("console: subscribed to %s/#", cfg.TopicScenePrefix)

	// Subscribe to geo fixes
	geoToken := client.Subscribe(cfg.TopicGeo, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f geo.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: geo unmarshal error: %v", err)
			return
		}
		fmt.Printf("[GEO ]  time=%s lat=%.6f lon=%.6f validity=%s\n",
			f.Time, f.Latitude, f.Longitude, f.Validity)
	})
	geoToken.Wait()
	if geoToken.Error() != nil {
		return geoToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGeo)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
