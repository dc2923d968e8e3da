package app

import (
	"github.com/cth-oso/x328/internal/bridge"
	"github.com/cth-oso/x328/internal/config"
	"github.com/cth-oso/x328/internal/logging"
	"github.com/cth-oso/x328/internal/mqttfwd"
)

// startForwarder connects the MQTT forwarder when the config enables it.
// It returns nil without error when forwarding is off.
func startForwarder(cfg config.MQTTConfig, logger *logging.Logger) (*mqttfwd.Forwarder, error) {
	if !cfg.Enable {
		return nil, nil
	}
	return mqttfwd.Connect(cfg, logger)
}

// busEvent converts a tap event into its published form.
func busEvent(ev bridge.TapEvent) mqttfwd.BusEvent {
	return mqttfwd.BusEvent{
		Time:      ev.Time,
		Kind:      ev.Kind,
		Station:   ev.Station,
		Parameter: ev.Parameter,
		Value:     ev.Value,
		Error:     ev.Err,
	}
}

// forwardEvents publishes tap events until the channel stops producing and
// done is closed. Publish errors are logged, not fatal.
func forwardEvents(fwd *mqttfwd.Forwarder, events <-chan bridge.TapEvent, done <-chan struct{}, logger *logging.Logger) {
	for {
		select {
		case <-done:
			return
		case ev := <-events:
			if err := fwd.Publish(busEvent(ev)); err != nil {
				logger.Error("MQTT publish: %v", err)
			}
		}
	}
}
