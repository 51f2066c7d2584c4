package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rover-control/rover/internal/drive"
)

const mqttConnectTimeout = 5 * time.Second

// MQTTMirror republishes each status broadcast to an MQTT topic as retained
// JSON, so fleet dashboards see the last known state without holding a
// connection to the rover. Publish failures are logged and dropped.
type MQTTMirror struct {
	client mqtt.Client
	topic  string
}

// NewMQTTMirror connects to the broker and returns a mirror publishing to
// topic. The client auto-reconnects; a lost broker only suspends mirroring.
func NewMQTTMirror(broker, clientID, topic string) (*MQTTMirror, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}

	return &MQTTMirror{client: client, topic: topic}, nil
}

// PublishStatus publishes one snapshot. Fire-and-forget: the broadcast loop
// must never block on the broker.
func (m *MQTTMirror) PublishStatus(s drive.Status) {
	payload, err := json.Marshal(s)
	if err != nil {
		log.Printf("telemetry: marshal status for mqtt: %v", err)
		return
	}
	m.client.Publish(m.topic, 0, true, payload)
}

// Close disconnects from the broker.
func (m *MQTTMirror) Close() {
	m.client.Disconnect(250)
}
