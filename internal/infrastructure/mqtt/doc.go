// Package mqtt provides MQTT client connectivity for Lumen Bridge.
//
// This package manages:
//   - Connection to the automation bus broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Lumen Bridge publishes canonical device state to the automation bus and
// receives control intents from it. The broker decouples automation
// consumers from the vendor transports the gateway speaks.
//
//	Automation consumers <-> MQTT Broker <-> Lumen Bridge <-> devices
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all inbound field intents
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceSets(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a retained state field
//	topic := mqtt.Topics{}.DeviceState("aa-bb-cc-dd", "power")
//	client.Publish(topic, []byte(`{"on":true}`), 1, true)
package mqtt
