// Package mqtt provides MQTT client connectivity for Tuya Fusion's
// push channels.
//
// This package manages:
//   - Connection to a broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Each configured Tuya source carries its own push channel: a broker
// relaying the cloud's device messages (status reports and bizCode
// events). One Client is created per source and its payloads are fed
// into the device registry.
//
//	Tuya Cloud → relay broker → mqtt.Client → registry.Manager
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Sources[0].MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SubscribePush(func(topic string, payload []byte) error {
//	    return manager.OnMessage("openapi", payload)
//	})
//
// # Reconnection
//
// The client reconnects with exponential backoff configured from the
// source's reconnect settings. Subscriptions are restored on every
// reconnect; message handlers run in paho's goroutines and must not
// block for extended periods.
package mqtt
