package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitzterra/battery-capacity-meter/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		SampleIntervalMs: 100,
		RestS:            300,
		MaxCycles:        2,
		Broker:           "tcp://192.168.1.200:1883",
		HTTPPort:         ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.UpdateChannel(0, status.ChannelSnapshot{BCState: "CHARGE", SoCState: "CHARGING", NumCycles: 1, MaxCycles: 2, BatteryID: "AB12"})
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))

	assert.Equal(t, "CHARGE", sj.Status.Channels[0].BC)
	assert.Equal(t, "AB12", sj.Status.Channels[0].BatteryID)
	assert.Equal(t, "UNKNOWN", sj.Status.Channels[1].BC)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, 2, sj.Status.Config.MaxCycles)
}

func TestJSONUnknownStateBeforeAnyUpdate(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))

	for _, ch := range sj.Status.Channels {
		assert.Equal(t, "UNKNOWN", ch.BC)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.UpdateChannel(0, status.ChannelSnapshot{BCState: "DISCHARGE", SoCState: "READY"})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html"))
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 404, resp.StatusCode)
}

func TestChannelUpdatesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	resp1, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	var sj1 status.StatusJSON
	require.NoError(t, json.NewDecoder(resp1.Body).Decode(&sj1))
	resp1.Body.Close()
	assert.Equal(t, "UNKNOWN", sj1.Status.Channels[2].BC)

	tr.UpdateChannel(2, status.ChannelSnapshot{BCState: "BAT_ID", SoCState: "CHARGING_1ST", NumCycles: 0, MaxCycles: 1})
	tr.SetMQTTConnected(true)

	resp2, err := http.Get(ts.URL + "/index.json")
	require.NoError(t, err)
	var sj2 status.StatusJSON
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&sj2))
	resp2.Body.Close()

	assert.Equal(t, "BAT_ID", sj2.Status.Channels[2].BC)
	assert.True(t, sj2.Status.MQTT.Connected)
}
