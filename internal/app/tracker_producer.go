package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/anchor_stage/internal/config"
	"github.com/relabs-tech/anchor_stage/internal/headpose"
	"github.com/relabs-tech/anchor_stage/internal/relocal"
	"github.com/relabs-tech/anchor_stage/internal/track"
)

// simConfidence models how mapping confidence typically comes up after a
// session start: nothing at first, then limited while the frame is being
// recognised, then mapped.
func simConfidence(elapsed time.Duration) relocal.Confidence {
	switch {
	case elapsed < 500*time.Millisecond:
		return relocal.ConfidenceNotAvailable
	case elapsed < 3*time.Second:
		return relocal.ConfidenceLimited
	default:
		return relocal.ConfidenceMapped
	}
}

// RunTrackerProducer publishes tracking samples (mapping confidence plus
// head pose) at the configured interval. Head poses come from the mock
// source or from the head-mounted IMU.
func RunTrackerProducer(cfg *config.Config) error {
	log.Println("starting anchor-stage tracking producer")

	// --- Choose head-pose source (mock vs real IMU) ---
	var src headpose.Source
	if cfg.TrackerUseMock {
		log.Println("tracker: using mock head-pose source")
		src = headpose.NewMockSource()
	} else {
		var err error
		src, err = headpose.NewIMUSource(cfg.IMUSPIDevice, cfg.IMUCSPin)
		if err != nil {
			return err
		}
		log.Printf("tracker: using head IMU on %s", cfg.IMUSPIDevice)
	}

	// --- Connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDTracker)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Println("tracker: connected to MQTT, starting publish loop")

	start := time.Now()
	ticker := time.NewTicker(time.Duration(cfg.TrackerSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		pose, err := src.Next()
		if err != nil {
			log.Printf("tracker: head-pose source error: %v", err)
			continue
		}

		q := pose.Quaternion()
		sample := track.Sample{
			Confidence: simConfidence(t.Sub(start)).String(),
			Qw:         q.Real,
			Qx:         q.Imag,
			Qy:         q.Jmag,
			Qz:         q.Kmag,
			X:          pose.Position.X,
			Y:          pose.Position.Y,
			Z:          pose.Position.Z,
			Time:       t.Format(time.RFC3339),
		}

		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("tracker: sample marshal error: %v", err)
			continue
		}
		// Not retained: a confidence sample is only evidence while it is
		// current, and a broker-held copy could settle a later session on
		// stale data.
		if token := client.Publish(cfg.TopicTracking, 0, false, payload); token.Wait() && token.Error() != nil {
			log.Printf("tracker: publish error: %v", token.Error())
			continue
		}

		log.Printf("%s tick: %s R=%.2f P=%.2f Y=%.2f",
			t.Format(time.RFC3339), sample.Confidence, pose.Roll, pose.Pitch, pose.Yaw)
	}
	return nil
}
