package network

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/process"
)

// SocketHandler receives socket events. Both methods run from tasks on the
// owning server's scheduler.
type SocketHandler interface {
	HandleMessage(msg []byte, reply *ReplySocket)
	HandleDisconnect(peer string)
}

type endpoint struct {
	handler SocketHandler
	ts      Timestamp
}

// Transport multiplexes sockets of one server over its links.
type Transport struct {
	net       *Network
	host      string
	mem       *process.Memory
	sched     *process.Scheduler
	log       *logrus.Entry
	endpoints map[Port]endpoint
	nextPort  Port
}

// NewTransport creates the transport of host. Incoming messages are copied
// into mem and dispatched on sched.
func NewTransport(net *Network, host string, mem *process.Memory, sched *process.Scheduler) *Transport {
	return &Transport{
		net:       net,
		host:      host,
		mem:       mem,
		sched:     sched,
		log:       net.env.Logger().WithField("component", "Transport"),
		endpoints: make(map[Port]endpoint),
		nextPort:  1,
	}
}

func (t *Transport) newEndpointTimestamp() Timestamp {
	return Timestamp(t.net.env.StepNumber())
}

func (t *Transport) findFreePort() Port {
	for {
		p := t.nextPort
		t.nextPort++
		if _, used := t.endpoints[p]; !used {
			return p
		}
	}
}

// ConnectTo opens a client socket to addr on a fresh local port.
func (t *Transport) ConnectTo(addr Address, h SocketHandler) *ClientSocket {
	link := t.net.GetLink(t.host, addr.Host)
	port := t.findFreePort()
	ts := t.newEndpointTimestamp()

	t.log.Infof("connecting to %s: local port = %d", addr, port)
	t.endpoints[port] = endpoint{handler: h, ts: ts}

	if t.net.ping {
		// Detect crashes and reboots of the peer early.
		link.Add(Packet{Header: Header{Type: Ping, SourcePort: port, DestPort: addr.Port, Timestamp: ts}})
	}
	return &ClientSocket{transport: t, link: link, local: port, remote: addr, ts: ts}
}

// Serve listens on port. Panics if the port is taken.
func (t *Transport) Serve(port Port, h SocketHandler) *ServerSocket {
	if _, used := t.endpoints[port]; used {
		panic(fmt.Sprintf("port %d already in use", port))
	}
	t.endpoints[port] = endpoint{handler: h, ts: t.newEndpointTimestamp()}
	t.log.Infof("serving at port %d", port)
	return &ServerSocket{transport: t, port: port}
}

func (t *Transport) removeEndpoint(port Port) {
	t.log.Infof("remove endpoint at port %d", port)
	delete(t.endpoints, port)
}

// Reset drops every endpoint. Called when the server crashes.
func (t *Transport) Reset() {
	t.endpoints = make(map[Port]endpoint)
}

// Endpoints returns the number of open endpoints.
func (t *Transport) Endpoints() int {
	return len(t.endpoints)
}

// HandlePacket processes a packet that reached this host; out leads back to
// the sender.
func (t *Transport) HandlePacket(p Packet, out *Link) {
	from := Address{out.End().HostName(), p.SourcePort}
	to := Address{t.host, p.DestPort}
	r := replier{header: p.Header, out: out}

	ep, ok := t.endpoints[p.DestPort]
	if !ok {
		if p.Type != Reset {
			if p.Type == Data {
				t.log.Warnf("endpoint %s not found, drop incoming packet from %s", to, from)
			}
			r.reply(Reset, nil)
		}
		return
	}

	switch {
	case p.Timestamp < ep.ts:
		// Sent to a previous incarnation of this endpoint.
		r.reply(Reset, nil)
	case p.Type == Ping:
		r.reply(Ping, nil)
	case p.Type == Reset:
		handler := ep.handler
		t.sched.ScheduleAsap(process.TaskFunc(func() { handler.HandleDisconnect(from.Host) }))
	case p.Type == Data:
		t.log.Infof("handle message from %s: %d bytes", from, len(p.Payload))
		handler := ep.handler
		msg := t.mem.Copy(p.Payload)
		reply := &ReplySocket{header: p.Header, link: out}
		t.sched.ScheduleAsap(process.TaskFunc(func() { handler.HandleMessage(msg, reply) }))
	}
}

type replier struct {
	header Header
	out    *Link
}

func (r replier) reply(typ PacketType, payload []byte) {
	r.out.Add(Packet{
		Header: Header{
			Type:       typ,
			SourcePort: r.header.DestPort,
			DestPort:   r.header.SourcePort,
			Timestamp:  r.header.Timestamp,
		},
		Payload: payload,
	})
}

// ClientSocket is the local end of an outgoing connection.
type ClientSocket struct {
	transport *Transport
	link      *Link
	local     Port
	remote    Address
	ts        Timestamp
	closed    bool
}

// Send transmits a copy of payload to the remote endpoint.
func (s *ClientSocket) Send(payload []byte) {
	if s.closed {
		panic("send on closed socket")
	}
	s.link.Add(Packet{
		Header:  Header{Type: Data, SourcePort: s.local, DestPort: s.remote.Port, Timestamp: s.ts},
		Payload: append([]byte(nil), payload...),
	})
}

func (s *ClientSocket) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.transport.removeEndpoint(s.local)
}

func (s *ClientSocket) LocalPort() Port { return s.local }
func (s *ClientSocket) Remote() Address { return s.remote }
func (s *ClientSocket) IsClosed() bool  { return s.closed }

// ServerSocket is a listening endpoint.
type ServerSocket struct {
	transport *Transport
	port      Port
	closed    bool
}

func (s *ServerSocket) Port() Port { return s.port }

func (s *ServerSocket) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.transport.removeEndpoint(s.port)
}

// ReplySocket answers the sender of one received message.
type ReplySocket struct {
	header Header
	link   *Link
}

// Send replies with a copy of payload, stamped like the original packet.
func (s *ReplySocket) Send(payload []byte) {
	replier{header: s.header, out: s.link}.reply(Data, append([]byte(nil), payload...))
}

// Peer returns the sender's address.
func (s *ReplySocket) Peer() Address {
	return Address{s.link.End().HostName(), s.header.SourcePort}
}
