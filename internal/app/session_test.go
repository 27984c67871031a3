package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/anchor_stage/internal/relocal"
	"github.com/relabs-tech/anchor_stage/internal/track"
)

func sampleAt(at time.Time, confidence string) track.Sample {
	return track.Sample{Confidence: confidence, Qw: 1, Time: at.Format(time.RFC3339)}
}

func TestStaleSample(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	t.Run("current sample passes", func(t *testing.T) {
		t.Parallel()
		stale, err := staleSample(sampleAt(now.Add(-time.Second), "mapped"), now)
		require.NoError(t, err)
		assert.False(t, stale)
	})

	t.Run("old sample is stale", func(t *testing.T) {
		t.Parallel()
		stale, err := staleSample(sampleAt(now.Add(-5*time.Minute), "mapped"), now)
		require.NoError(t, err)
		assert.True(t, stale)
	})

	t.Run("missing timestamp is stale", func(t *testing.T) {
		t.Parallel()
		stale, err := staleSample(track.Sample{Confidence: "mapped", Qw: 1}, now)
		require.Error(t, err)
		assert.True(t, stale)
	})

	t.Run("malformed timestamp is stale", func(t *testing.T) {
		t.Parallel()
		stale, err := staleSample(track.Sample{Confidence: "mapped", Qw: 1, Time: "yesterday"}, now)
		require.Error(t, err)
		assert.True(t, stale)
	})

	// A broker-held "mapped" sample from a tracker that stopped minutes
	// ago arrives first on subscribe. Filtered by age it never reaches
	// the machine, so the session still waits for live confidence (or
	// the deadline) instead of settling at t=0 on leftover data.
	t.Run("leftover mapped sample does not settle the machine", func(t *testing.T) {
		t.Parallel()
		machine := relocal.NewMachine()
		machine.Start()

		leftover := sampleAt(now.Add(-3*time.Minute), "mapped")
		stale, _ := staleSample(leftover, now)
		require.True(t, stale)
		// The session loop skips Observe for stale samples.

		assert.Equal(t, relocal.StateRelocalizing, machine.State())

		live := sampleAt(now, "mapped")
		stale, err := staleSample(live, now)
		require.NoError(t, err)
		require.False(t, stale)

		c, err := live.MappingConfidence()
		require.NoError(t, err)
		out, settled := machine.Observe(c)
		require.True(t, settled)
		assert.Equal(t, relocal.StateMapped, out.State)
		assert.True(t, out.Aligned)
	})
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	stereo, ok := parseMode([]byte("stereo"))
	assert.True(t, ok)
	assert.True(t, stereo)

	stereo, ok = parseMode([]byte("mono"))
	assert.True(t, ok)
	assert.False(t, stereo)

	_, ok = parseMode([]byte("cinema"))
	assert.False(t, ok)

	_, ok = parseMode(nil)
	assert.False(t, ok)
}
