package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{SampleIntervalMs: 100, RestS: 300, MaxCycles: 2, Broker: "tcp://localhost:1883", HTTPPort: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	assert.True(t, snap.StartTime.Equal(start))
	assert.Equal(t, 2, snap.Config.MaxCycles)
	assert.Equal(t, ":80", snap.Config.HTTPPort)
	assert.False(t, snap.MQTTConnected)
	for _, ch := range snap.Channels {
		assert.Empty(t, ch.BCState)
	}
}

func TestUpdateChannelAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.UpdateChannel(1, ChannelSnapshot{BCState: "CHARGE", SoCState: "CHARGING", NumCycles: 1, MaxCycles: 3, BatteryID: "AB12"})

	snap := tr.Snapshot()
	assert.Equal(t, "CHARGE", snap.Channels[1].BCState)
	assert.Equal(t, "AB12", snap.Channels[1].BatteryID)
	assert.Empty(t, snap.Channels[0].BCState)
}

func TestUpdateChannelOutOfRangeIsIgnored(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.UpdateChannel(-1, ChannelSnapshot{BCState: "CHARGE"})
	tr.UpdateChannel(4, ChannelSnapshot{BCState: "CHARGE"})

	snap := tr.Snapshot()
	for _, ch := range snap.Channels {
		assert.Empty(t, ch.BCState)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	assert.True(t, tr.Snapshot().MQTTConnected)

	tr.SetMQTTConnected(false)
	assert.False(t, tr.Snapshot().MQTTConnected)
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	assert.Equal(t, 15*time.Minute, snap.Uptime())
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	assert.False(t, snap.Now.Before(before))
	assert.False(t, snap.Now.After(after))
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.UpdateChannel(0, ChannelSnapshot{BCState: "CHARGE"})

	snap1 := tr.Snapshot()

	tr.UpdateChannel(0, ChannelSnapshot{BCState: "DISCHARGE"})

	assert.Equal(t, "CHARGE", snap1.Channels[0].BCState)
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{SampleIntervalMs: 100, RestS: 300, MaxCycles: 2, Broker: "tcp://localhost:1883", HTTPPort: ":80"},
	}
	snap.Channels[0] = ChannelSnapshot{BCState: "CHARGE", SoCState: "CHARGING", NumCycles: 1, MaxCycles: 2}

	data := FormatJSON(snap)

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "CHARGE", parsed.Status.Channels[0].BC)
	assert.EqualValues(t, 900, parsed.Status.UptimeSeconds)
	assert.True(t, parsed.Status.MQTT.Connected)
	assert.Empty(t, parsed.Status.Event)
	assert.Empty(t, parsed.Status.Reason)
}

func TestFormatJSONUnknownState(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))

	for _, ch := range parsed.Status.Channels {
		assert.Equal(t, "UNKNOWN", ch.BC)
		assert.Equal(t, "UNKNOWN", ch.SoC)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{SampleIntervalMs: 100, Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "HEARTBEAT", parsed.Status.Event)
	assert.Empty(t, parsed.Status.Reason)
	assert.EqualValues(t, 900, parsed.Status.UptimeSeconds)
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	require.NoError(t, json.Unmarshal(data, &parsed))

	assert.Equal(t, "SHUTDOWN", parsed.Status.Event)
	assert.Equal(t, "SIGTERM", parsed.Status.Reason)
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	s := raw["status"].(map[string]interface{})
	_, exists := s["reason"]
	assert.False(t, exists)
	assert.Equal(t, "STARTUP", s["event"])
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.UpdateChannel(i%4, ChannelSnapshot{BCState: "CHARGE", NumCycles: i})
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = snap.Uptime()
		}
	}()

	wg.Wait()
}
