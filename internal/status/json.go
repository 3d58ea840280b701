package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string           `json:"event,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	MQTT          MQTTStatus       `json:"mqtt"`
	Channels      [4]ChannelJSON   `json:"channels"`
	Config        ConfigJSON       `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ChannelJSON is the JSON representation of one channel's state.
type ChannelJSON struct {
	BC        string `json:"bc"`
	SoC       string `json:"soc"`
	NumCycles int    `json:"num_cycles"`
	MaxCycles int    `json:"max_cycles"`
	BatteryID string `json:"battery_id,omitempty"`
	Faults    int    `json:"faults"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	SampleIntervalMs int64  `json:"sample_interval_ms"`
	RestSeconds      int64  `json:"rest_seconds"`
	MaxCycles        int    `json:"max_cycles"`
	Broker           string `json:"broker"`
	HTTPPort         string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			SampleIntervalMs: snap.Config.SampleIntervalMs,
			RestSeconds:      snap.Config.RestS,
			MaxCycles:        snap.Config.MaxCycles,
			Broker:           snap.Config.Broker,
			HTTPPort:         snap.Config.HTTPPort,
		},
	}
	for i, ch := range snap.Channels {
		bc, soc := ch.BCState, ch.SoCState
		if bc == "" {
			bc = "UNKNOWN"
		}
		if soc == "" {
			soc = "UNKNOWN"
		}
		inner.Channels[i] = ChannelJSON{
			BC:        bc,
			SoC:       soc,
			NumCycles: ch.NumCycles,
			MaxCycles: ch.MaxCycles,
			BatteryID: ch.BatteryID,
			Faults:    ch.Faults,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for a broadcast telemetry event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
