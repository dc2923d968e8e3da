// Package mqttfwd publishes decoded bus traffic to an MQTT broker so that
// dashboards and historians can follow a serial line without touching it.
package mqttfwd

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/logging"
)

// BusEvent is one decoded transaction on the bus. Value is nil for
// transactions that carry none (timeouts, write acks, faults).
type BusEvent struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	Station   int       `json:"station"`
	Parameter int       `json:"parameter"`
	Value     *int      `json:"value,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Event kinds as they appear in published payloads.
const (
	KindRead    = "read"
	KindWrite   = "write"
	KindTimeout = "timeout"
	KindFault   = "fault"
)

const publishTimeout = 5 * time.Second

// Forwarder publishes bus events to a single MQTT topic.
type Forwarder struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	logger *logging.Logger
}

// Connect builds an MQTT client from cfg and connects to the broker.
func Connect(cfg config.MQTTConfig, logger *logging.Logger) (*Forwarder, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "x328-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(publishTimeout)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	}
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connected to %s as %s", cfg.Broker, clientID)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}

	return &Forwarder{client: client, cfg: cfg, logger: logger}, nil
}

// Publish sends one event to the configured topic. A zero Time is stamped
// with the current time.
func (f *Forwarder) Publish(ev BusEvent) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode bus event: %w", err)
	}

	token := f.client.Publish(f.cfg.Topic, byte(f.cfg.QoS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out", f.cfg.Topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish to %s: %w", f.cfg.Topic, token.Error())
	}
	f.logger.Debug("Published %s event for station %d to %s", ev.Kind, ev.Station, f.cfg.Topic)
	return nil
}

// Close disconnects from the broker, allowing in-flight messages to drain.
func (f *Forwarder) Close() {
	f.client.Disconnect(250)
}
