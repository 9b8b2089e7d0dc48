// Package mqttv5 provides an MQTT v5.0 client implementation.
//
// This package implements the MQTT Version 5.0 OASIS Standard:
// https://docs.oasis-open.org/mqtt/mqtt/v5.0/mqtt-v5.0.html
//
// # Features
//
//   - All 15 MQTT v5.0 control packet types
//   - Complete properties system (27 property identifiers)
//   - QoS 0, 1, 2 message flows with state machines
//   - Topic matching with wildcard support (+, #)
//   - Transport: TCP, TLS, WebSocket, WSS, QUIC, SOCKS5/HTTP proxies
//   - Multi-broker endpoint lists with DNS-resolved round-robin failover
//   - Enhanced (SASL-style) authentication, including SCRAM-SHA-1/256/512
//
// # Packet Types
//
// The package provides structs for all MQTT v5.0 control packets:
//
//   - ConnectPacket, ConnackPacket: Connection establishment
//   - PublishPacket, PubackPacket, PubrecPacket, PubrelPacket, PubcompPacket: Message delivery
//   - SubscribePacket, SubackPacket: Topic subscription
//   - UnsubscribePacket, UnsubackPacket: Topic unsubscription
//   - PingreqPacket, PingrespPacket: Keep-alive
//   - DisconnectPacket: Connection termination
//   - AuthPacket: Enhanced authentication
//
// Use ReadPacket and WritePacket to read/write packets from/to connections:
//
//	// Read a packet
//	pkt, n, err := mqttv5.ReadPacket(conn, maxPacketSize)
//
//	// Write a packet
//	n, err := mqttv5.WritePacket(conn, packet, maxPacketSize)
//
// # Client
//
// Use the high-level Client API for connecting to MQTT brokers:
//
//	client, err := mqttv5.Dial(
//	    mqttv5.WithServers("tcp://localhost:1883"),
//	    mqttv5.WithClientID("my-client"),
//	    mqttv5.WithKeepAlive(60),
//	)
//	defer client.Close()
//
// TLS connections:
//
//	client, err := mqttv5.Dial(
//	    mqttv5.WithServers("ssl://localhost:8883"),
//	    mqttv5.WithTLS(&tls.Config{}),
//	)
//
// WebSocket connections:
//
//	client, err := mqttv5.Dial(mqttv5.WithServers("ws://localhost:8080/mqtt"))
//
// # Multiple Brokers
//
// WithBrokers parses a comma-separated host list (host, host:port, or
// scheme://host[:port][/path] entries) and resolves each DNS name fresh on
// every connection attempt, round-robining across the results:
//
//	client, err := mqttv5.Dial(
//	    mqttv5.WithBrokers("broker-a.example.com,broker-b.example.com:8883", 1883),
//	)
//
// For dynamic service discovery, use WithServerResolver instead; it is
// consulted before the static list on every (re)connection attempt.
//
// # Session Management
//
// Session state can be managed using the Session interface. A reference
// implementation is provided with MemorySession:
//
//	session := mqttv5.NewMemorySession("client-id")
//	session.AddSubscription(mqttv5.Subscription{
//	    TopicFilter: "sensors/#",
//	    QoS: 1,
//	})
//	packetID := session.NextPacketID()
//
// # QoS State Machines
//
// For QoS 1 and 2 message flows, use the provided state machines:
//
//	// QoS 1 tracking
//	tracker := mqttv5.NewQoS1Tracker(retryTimeout, maxRetries)
//	tracker.Track(packetID, message)
//	tracker.Acknowledge(packetID)
//
//	// QoS 2 tracking
//	tracker := mqttv5.NewQoS2Tracker(retryTimeout, maxRetries)
//	tracker.TrackSend(packetID, message)
//	tracker.HandlePubrec(packetID)
//	tracker.HandlePubcomp(packetID)
//
// Packet identifiers for both are allocated from a single PacketIDAllocator,
// which tracks free space as a sorted list of disjoint intervals rather than
// a per-ID map.
//
// # Flow Control
//
// Flow control prevents overwhelming the broker or the client with too many
// in-flight QoS 1/2 messages, per each side's Receive Maximum:
//
//	fc := mqttv5.NewFlowController(receiveMaximum)
//	if fc.CanSend() {
//	    fc.Acquire()
//	}
//	fc.Release()
//
// # Topic Matching
//
// Topic validation and matching support MQTT wildcards:
//
//	// Validate topic names and filters
//	err := mqttv5.ValidateTopicName("sensors/temperature")
//	err = mqttv5.ValidateTopicFilter("sensors/+/status")
//
//	// Match topics against filters
//	matched := mqttv5.TopicMatch("sensors/#", "sensors/room1/temp")
//
//	// Parse shared subscriptions
//	shared, _ := mqttv5.ParseSharedSubscription("$share/group/topic")
//
// # Enhanced Authentication
//
// Implement the Authenticator interface to drive a SASL-style exchange over
// CONNECT/CONNACK/AUTH packets. SCRAMClientAuthenticator is a ready-made
// implementation of SCRAM-SHA-1/256/512 (RFC 5802):
//
//	client, err := mqttv5.Dial(
//	    mqttv5.WithServers("tcp://localhost:1883"),
//	    mqttv5.WithAuthenticator(mqttv5.NewSCRAMClientAuthenticator(
//	        mqttv5.SCRAMHashSHA256, "alice", "s3cret",
//	    )),
//	)
//
// # Logging
//
// Implement the Logger interface for structured logging:
//
//	logger := mqttv5.NewStdLogger(os.Stdout, mqttv5.LogLevelInfo)
//	logger.Info("client connected", mqttv5.LogFields{"client_id": "test"})
package mqttv5
