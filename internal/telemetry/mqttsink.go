package telemetry

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/fitzterra/battery-capacity-meter/internal/domain"
)

// MQTTSink publishes records to an MQTT broker, one topic per record
// kind under a common prefix.
type MQTTSink struct {
	client       paho.Client
	topicPrefix  string
	publishTimeout time.Duration
}

// NewMQTTSink connects to broker and returns a ready MQTTSink.
// topicPrefix is usually something like "battery-capacity-meter".
func NewMQTTSink(broker, topicPrefix string) (*MQTTSink, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID("battery-capacity-meter").
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("telemetry: mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("telemetry: mqtt connect: %w", err)
	}

	return &MQTTSink{client: client, topicPrefix: topicPrefix, publishTimeout: 2 * time.Second}, nil
}

// TrySend publishes rec at QoS 0 (at-most-once), returning false rather
// than blocking if the client isn't connected or the publish can't be
// acknowledged within the try-send budget.
func (m *MQTTSink) TrySend(rec domain.Record) bool {
	if !m.client.IsConnected() {
		return false
	}
	payload, err := Encode(rec)
	if err != nil {
		return false
	}
	topic := fmt.Sprintf("%s/%d/%s", m.topicPrefix, rec.ChannelID, rec.Kind)
	token := m.client.Publish(topic, 0, false, payload)
	return token.WaitTimeout(m.publishTimeout) && token.Error() == nil
}

// IsConnected reports whether the underlying client currently has a live
// broker connection.
func (m *MQTTSink) IsConnected() bool { return m.client.IsConnected() }

// Close disconnects from the broker.
func (m *MQTTSink) Close() error {
	m.client.Disconnect(250)
	return nil
}
