package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anchor_config.txt")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "# empty but valid\n"))
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
	assert.Equal(t, 10000, cfg.RelocDeadlineMS)
	assert.Equal(t, "kitchen", cfg.PrimaryAnchor)
	assert.Equal(t, "gun", cfg.HazardName)
	assert.InDelta(t, 0.58, cfg.HazardOffset.X, 1e-9)
	assert.InDelta(t, 0.064, cfg.IPD, 1e-9)
	assert.False(t, cfg.Stereo)
	assert.InDelta(t, 4.0, cfg.TargetSizes["kitchen"], 1e-9)
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, `
MQTT_BROKER=tcp://broker:1883
STEREO=true
IPD=0.061
HAZARD_OFFSET=1.34, -0.27, 0.76
VIEWPORT_WIDTH=1280
VIEWPORT_HEIGHT=720
TARGET_SIZES=kitchen=3.5,gun=0.25,chair=1.1
RELOC_DEADLINE_MS=5000
ROOM_ID=abc-123
`))
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.True(t, cfg.Stereo)
	assert.InDelta(t, 0.061, cfg.IPD, 1e-9)
	assert.InDelta(t, 1.34, cfg.HazardOffset.X, 1e-9)
	assert.InDelta(t, -0.27, cfg.HazardOffset.Y, 1e-9)
	assert.InDelta(t, 0.76, cfg.HazardOffset.Z, 1e-9)
	assert.InDelta(t, 1280, cfg.ViewportWidth, 1e-9)
	assert.InDelta(t, 1.1, cfg.TargetSizes["chair"], 1e-9)
	assert.Equal(t, 5000, cfg.RelocDeadlineMS)
	assert.Equal(t, "abc-123", cfg.RoomID)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Parallel()

	for name, contents := range map[string]string{
		"unknown key":        "NOT_A_KEY=1\n",
		"bad line":           "JUSTAKEY\n",
		"non-positive ipd":   "IPD=0\n",
		"negative deadline":  "RELOC_DEADLINE_MS=-1\n",
		"malformed offset":   "HAZARD_OFFSET=1,2\n",
		"bad target size":    "TARGET_SIZES=gun=-0.2\n",
		"bad stereo flag":    "STEREO=sideways\n",
		"empty room db path": "ROOM_DB_PATH=\n",
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeConfig(t, contents))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
