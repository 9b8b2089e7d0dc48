package rpc

import (
	"net"
	"sync"

	"github.com/vitalvas/mqttv5"
)

// testBroker is a minimal single-process MQTT v5 broker, just capable
// enough to exercise request/response routing in these tests: it
// acknowledges CONNECT and SUBSCRIBE, fans PUBLISH packets out to every
// connection whose subscribed filters match (via mqttv5.TopicMatch), and
// answers PINGREQ so idle connections are not dropped mid-test.
type testBroker struct {
	listener net.Listener

	mu    sync.Mutex
	conns map[net.Conn][]string
}

func startTestBroker() (addr string, closeFn func(), err error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}

	b := &testBroker{
		listener: listener,
		conns:    make(map[net.Conn][]string),
	}
	go b.serve()

	return listener.Addr().String(), func() { listener.Close() }, nil
}

func (b *testBroker) serve() {
	for {
		conn, err := b.listener.Accept()
		if err != nil {
			return
		}
		b.mu.Lock()
		b.conns[conn] = nil
		b.mu.Unlock()
		go b.handleConn(conn)
	}
}

func (b *testBroker) handleConn(conn net.Conn) {
	defer func() {
		b.mu.Lock()
		delete(b.conns, conn)
		b.mu.Unlock()
		conn.Close()
	}()

	for {
		pkt, _, err := mqttv5.ReadPacket(conn, 0)
		if err != nil {
			return
		}

		switch p := pkt.(type) {
		case *mqttv5.ConnectPacket:
			ack := &mqttv5.ConnackPacket{ReasonCode: mqttv5.ReasonSuccess}
			if _, err := mqttv5.WritePacket(conn, ack, 0); err != nil {
				return
			}

		case *mqttv5.SubscribePacket:
			reasons := make([]mqttv5.ReasonCode, len(p.Subscriptions))
			b.mu.Lock()
			for i, sub := range p.Subscriptions {
				b.conns[conn] = append(b.conns[conn], sub.TopicFilter)
				reasons[i] = mqttv5.ReasonSuccess
			}
			b.mu.Unlock()
			ack := &mqttv5.SubackPacket{PacketID: p.PacketID, ReasonCodes: reasons}
			if _, err := mqttv5.WritePacket(conn, ack, 0); err != nil {
				return
			}

		case *mqttv5.UnsubscribePacket:
			b.mu.Lock()
			filterSet := make(map[string]struct{}, len(p.TopicFilters))
			for _, f := range p.TopicFilters {
				filterSet[f] = struct{}{}
			}
			kept := b.conns[conn][:0]
			for _, f := range b.conns[conn] {
				if _, removed := filterSet[f]; !removed {
					kept = append(kept, f)
				}
			}
			b.conns[conn] = kept
			b.mu.Unlock()
			reasons := make([]mqttv5.ReasonCode, len(p.TopicFilters))
			for i := range reasons {
				reasons[i] = mqttv5.ReasonSuccess
			}
			ack := &mqttv5.UnsubackPacket{PacketID: p.PacketID, ReasonCodes: reasons}
			if _, err := mqttv5.WritePacket(conn, ack, 0); err != nil {
				return
			}

		case *mqttv5.PublishPacket:
			b.route(p)

		case *mqttv5.PingreqPacket:
			if _, err := mqttv5.WritePacket(conn, &mqttv5.PingrespPacket{}, 0); err != nil {
				return
			}

		case *mqttv5.DisconnectPacket:
			return
		}
	}
}

// route forwards a PUBLISH to every connection subscribed to a filter
// matching the message topic.
func (b *testBroker) route(p *mqttv5.PublishPacket) {
	b.mu.Lock()
	var targets []net.Conn
	for conn, filters := range b.conns {
		for _, filter := range filters {
			if mqttv5.TopicMatch(filter, p.Topic) {
				targets = append(targets, conn)
				break
			}
		}
	}
	b.mu.Unlock()

	for _, conn := range targets {
		out := &mqttv5.PublishPacket{
			Topic:   p.Topic,
			Payload: p.Payload,
			QoS:     0, // tests only exercise QoS 0 request/response
			Props:   p.Props,
		}
		_, _ = mqttv5.WritePacket(conn, out, 0)
	}
}
