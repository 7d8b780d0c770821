// Package mqtt provides MQTT client connectivity for solarbridge.
//
// This package manages:
//   - Two independent broker sessions (source and destination)
//   - Connection lifecycle as an explicit state machine with auto-reconnect
//   - Message publishing (best-effort, at-most-once from the caller's view)
//   - Topic subscriptions with full replay after every reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// The bridge sits between a high-frequency telemetry source and its
// downstream consumers:
//
//	Solar Assistant broker → solarbridge → Hubitat / EVSE broker
//
// Both sessions may point at the same physical broker; they never share
// subscription state.
//
// # Connection lifecycle
//
// Each session moves through an explicit state machine:
//
//	Disconnected → Connecting → Connected → Reconnecting → Connected → …
//
// Subscription replay is the transition action into Connected, because a
// pub/sub session does not retain subscriptions across a TCP-level
// reconnect. Replay is driven by a topic-keyed registry, so repeated
// reconnects never accumulate duplicate subscriptions.
//
// # Failure model
//
// Transport errors are never fatal. A lost connection moves the session to
// Reconnecting and the bounded backoff loop takes over; publish calls made
// while disconnected fail fast with ErrNotConnected and the caller logs
// and continues.
//
// # Usage
//
//	client, err := mqtt.Connect(mqtt.Config{
//	    Broker:    cfg.MQTT.Source,
//	    Role:      "source",
//	    QoS:       cfg.MQTT.QoS,
//	    Reconnect: cfg.MQTT.Reconnect,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("solar_assistant/inverter_1/load_power/state", 0,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
