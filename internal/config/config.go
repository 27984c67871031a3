package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/relabs-tech/anchor_stage/internal/transform"
)

// Config holds all application configuration values. It is loaded once in
// main and passed explicitly to the runners; there is no ambient global.
type Config struct {
	// MQTT
	MQTTBroker            string
	MQTTClientIDSession   string
	MQTTClientIDTracker   string
	MQTTClientIDGeo       string
	MQTTClientIDWeb       string
	MQTTClientIDConsole   string
	MQTTClientIDDisplay   string
	MQTTClientIDPreviewer string

	// Topics
	TopicTracking    string
	TopicGeo         string
	TopicScenePrefix string
	TopicMode        string
	TopicViewport    string

	// Relocalization
	RelocDeadlineMS int

	// Scene
	PrimaryAnchor string
	HazardName    string
	// HazardOffset is the single hazard-from-primary offset shared by
	// every placement path, in the primary's local frame.
	HazardOffset   transform.Vec3
	Stereo         bool
	IPD            float64
	ViewportWidth  float64
	ViewportHeight float64

	// Assets
	AssetsDir         string
	TargetSizes       map[string]float64
	TargetSizeDefault float64

	// Rooms
	RoomDBPath string
	RoomID     string // empty selects the most recently saved room

	// Tracker
	TrackerSampleInterval int // milliseconds
	TrackerUseMock        bool
	IMUSPIDevice          string
	IMUCSPin              string

	// GPS
	GPSSerialPort string
	GPSBaudRate   int

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds
}

// Default returns the configuration used when a key is absent from the
// config file.
func Default() *Config {
	return &Config{
		MQTTBroker:            "tcp://localhost:1883",
		MQTTClientIDSession:   "anchor-session",
		MQTTClientIDTracker:   "anchor-tracker",
		MQTTClientIDGeo:       "anchor-geo",
		MQTTClientIDWeb:       "anchor-web",
		MQTTClientIDConsole:   "anchor-console",
		MQTTClientIDDisplay:   "anchor-display",
		MQTTClientIDPreviewer: "anchor-previewer",

		TopicTracking:    "anchor/tracking",
		TopicGeo:         "anchor/geo",
		TopicScenePrefix: "anchor/scene",
		TopicMode:        "anchor/mode",
		TopicViewport:    "anchor/viewport",

		RelocDeadlineMS: 10000,

		PrimaryAnchor:  "kitchen",
		HazardName:     "gun",
		HazardOffset:   transform.Vec3{X: 0.58, Y: 0.84, Z: -2.53},
		IPD:            0.064,
		ViewportWidth:  800,
		ViewportHeight: 600,

		TargetSizes:       map[string]float64{"kitchen": 4.0, "gun": 0.2},
		TargetSizeDefault: 1.0,

		RoomDBPath: "rooms.db",

		TrackerSampleInterval: 100,
		TrackerUseMock:        true,
		IMUSPIDevice:          "/dev/spidev6.0",
		IMUCSPin:              "18",

		GPSSerialPort: "/dev/serial0",
		GPSBaudRate:   9600,

		WebServerPort: 8080,

		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 250,
	}
}

// Load reads the configuration file over the defaults and returns a
// Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_SESSION":
		c.MQTTClientIDSession = value
	case "MQTT_CLIENT_ID_TRACKER":
		c.MQTTClientIDTracker = value
	case "MQTT_CLIENT_ID_GEO":
		c.MQTTClientIDGeo = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value
	case "MQTT_CLIENT_ID_PREVIEWER":
		c.MQTTClientIDPreviewer = value

	// Topics
	case "TOPIC_TRACKING":
		c.TopicTracking = value
	case "TOPIC_GEO":
		c.TopicGeo = value
	case "TOPIC_SCENE_PREFIX":
		c.TopicScenePrefix = value
	case "TOPIC_MODE":
		c.TopicMode = value
	case "TOPIC_VIEWPORT":
		c.TopicViewport = value

	// Relocalization
	case "RELOC_DEADLINE_MS":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid RELOC_DEADLINE_MS %q: %w", value, err)
		}
		if ms <= 0 {
			return fmt.Errorf("RELOC_DEADLINE_MS must be positive, got %d", ms)
		}
		c.RelocDeadlineMS = ms

	// Scene
	case "PRIMARY_ANCHOR":
		c.PrimaryAnchor = value
	case "HAZARD_NAME":
		c.HazardName = value
	case "HAZARD_OFFSET":
		v, err := parseVec3(value)
		if err != nil {
			return fmt.Errorf("invalid HAZARD_OFFSET %q: %w", value, err)
		}
		c.HazardOffset = v
	case "STEREO":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid STEREO %q: %w", value, err)
		}
		c.Stereo = b
	case "IPD":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid IPD %q: %w", value, err)
		}
		if f <= 0 {
			return fmt.Errorf("IPD must be positive, got %v", f)
		}
		c.IPD = f
	case "VIEWPORT_WIDTH":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid VIEWPORT_WIDTH %q: %w", value, err)
		}
		c.ViewportWidth = f
	case "VIEWPORT_HEIGHT":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid VIEWPORT_HEIGHT %q: %w", value, err)
		}
		c.ViewportHeight = f

	// Assets
	case "ASSETS_DIR":
		c.AssetsDir = value
	case "TARGET_SIZES":
		sizes, err := parseTargetSizes(value)
		if err != nil {
			return fmt.Errorf("invalid TARGET_SIZES %q: %w", value, err)
		}
		c.TargetSizes = sizes
	case "TARGET_SIZE_DEFAULT":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid TARGET_SIZE_DEFAULT %q: %w", value, err)
		}
		c.TargetSizeDefault = f

	// Rooms
	case "ROOM_DB_PATH":
		c.RoomDBPath = value
	case "ROOM_ID":
		c.RoomID = value

	// Tracker
	case "TRACKER_SAMPLE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid TRACKER_SAMPLE_INTERVAL %q: %w", value, err)
		}
		c.TrackerSampleInterval = interval
	case "TRACKER_USE_MOCK":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid TRACKER_USE_MOCK %q: %w", value, err)
		}
		c.TrackerUseMock = b
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid GPS_BAUD_RATE %q: %w", value, err)
		}
		c.GPSBaudRate = rate

	// Web Server
	case "WEB_SERVER_PORT":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", value, err)
		}
		c.WebServerPort = port

	// Display
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_I2C_ADDR %q: %w", value, err)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid DISPLAY_UPDATE_INTERVAL %q: %w", value, err)
		}
		c.DisplayUpdateInterval = interval

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return nil
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.TopicTracking == "" {
		return fmt.Errorf("TOPIC_TRACKING is required")
	}
	if c.TopicScenePrefix == "" {
		return fmt.Errorf("TOPIC_SCENE_PREFIX is required")
	}
	if c.RoomDBPath == "" {
		return fmt.Errorf("ROOM_DB_PATH is required")
	}
	if c.PrimaryAnchor == "" {
		return fmt.Errorf("PRIMARY_ANCHOR is required")
	}
	return nil
}

// parseVec3 parses "x,y,z".
func parseVec3(s string) (transform.Vec3, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return transform.Vec3{}, fmt.Errorf("expected three comma-separated values")
	}
	var out [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return transform.Vec3{}, err
		}
		out[i] = f
	}
	return transform.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// parseTargetSizes parses "name=metres,name=metres".
func parseTargetSizes(s string) (map[string]float64, error) {
	sizes := map[string]float64{}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("entry %q is not name=value", entry)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(kv[1]), 64)
		if err != nil {
			return nil, err
		}
		if f <= 0 {
			return nil, fmt.Errorf("target size for %q must be positive", kv[0])
		}
		sizes[strings.TrimSpace(kv[0])] = f
	}
	return sizes, nil
}
