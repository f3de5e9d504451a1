package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes alert messages to a per-device topic, for downstream
// automations subscribed to the broker.
type MQTT struct {
	client       mqtt.Client
	topicPattern string // e.g. "alerts/{device_id}"
}

// NewMQTT connects to the broker and returns the notifier.
func NewMQTT(broker, clientID, topicPattern string, timeout time.Duration) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(timeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return &MQTT{client: client, topicPattern: topicPattern}, nil
}

func (m *MQTT) Name() string { return "mqtt" }

// Send publishes at QoS 1 to the device's topic.
func (m *MQTT) Send(ctx context.Context, deviceID, message string) error {
	topic := strings.ReplaceAll(m.topicPattern, "{device_id}", deviceID)

	token := m.client.Publish(topic, 1, false, message)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("failed to publish alert: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("alert publish cancelled: %w", ctx.Err())
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.client.Disconnect(250)
}
