// Package mqtt provides MQTT client connectivity for the RS-485 core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bus decouples the core from field-side producers: gateways and
// firmware publish decoded telemetry frames under rs485/telemetry/+,
// the core subscribes and feeds them into its ingest pipeline. The
// core's own liveness is published retained on rs485/system/status.
//
//	RS-485 gateways ↔ MQTT Broker ↔ rs485 core
//
// # Security Considerations
//
//   - TLS is available for non-local brokers (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("frame: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
