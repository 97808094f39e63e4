// Package mqtt provides MQTT client connectivity for the sync service.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support, restored on reconnect
//   - Last Will and Testament (LWT) for offline detection
//   - The topic layout shared by the bridge and the backend uplink
//
// # Architecture
//
// One broker carries two topic trees. The LwM2M server stack publishes
// registration events, responses and notifications under the server root
// and reads commands from it. The service publishes attributes, telemetry,
// session changes and its own status under the backend root.
//
//	LwM2M server stack ↔ {server}/... ↔ sync service → {backend}/... → backend
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllNotifications(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
