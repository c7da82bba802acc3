package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/process"
)

type transportPair struct {
	env    *testEnv
	net    *Network
	client *transportHost
	server *transportHost
}

func newTransportPair() *transportPair {
	env := newTestEnv()
	mk := func(name string) *transportHost {
		return &transportHost{name: name, sched: process.NewScheduler(env.Now)}
	}
	p := &transportPair{env: env, client: mk("client"), server: mk("server")}
	p.net = newStartedNetwork(env, p.client, p.server)
	p.client.transport = NewTransport(p.net, "client", process.NewMemory(), p.client.sched)
	p.server.transport = NewTransport(p.net, "server", process.NewMemory(), p.server.sched)
	return p
}

// deliverAll steps the network and both hosts until nothing is pending.
func (p *transportPair) deliverAll() {
	for p.net.IsRunnable() || !p.client.sched.IsEmpty() || !p.server.sched.IsEmpty() {
		if p.net.IsRunnable() {
			p.env.now = core.MaxTime(p.env.now, p.net.NextStepTime())
			p.net.Step()
		}
		p.client.drain()
		p.server.drain()
	}
}

func TestTransport_RequestReply(t *testing.T) {
	// GIVEN a server listening on port 42 and a connected client
	p := newTransportPair()
	srv := &recordingHandler{}
	cli := &recordingHandler{}
	p.server.transport.Serve(42, srv)
	sock := p.client.transport.ConnectTo(Address{"server", 42}, cli)

	// WHEN the client sends and the server replies
	sock.Send([]byte("hello"))
	p.deliverAll()
	require.Len(t, srv.messages, 1)
	assert.Equal(t, "hello", string(srv.messages[0]))
	assert.Equal(t, Address{"client", sock.LocalPort()}, srv.replies[0].Peer())

	srv.replies[0].Send([]byte("world"))
	p.deliverAll()

	// THEN the reply reaches the client socket
	require.Len(t, cli.messages, 1)
	assert.Equal(t, "world", string(cli.messages[0]))
	assert.Empty(t, cli.disconnects)
}

func TestTransport_UnknownPortRepliesReset(t *testing.T) {
	// GIVEN a client connected to a port nobody serves
	p := newTransportPair()
	cli := &recordingHandler{}
	sock := p.client.transport.ConnectTo(Address{"server", 9}, cli)

	// WHEN sending
	sock.Send([]byte("anyone?"))
	p.deliverAll()

	// THEN the client observes a disconnect from the server host
	assert.Equal(t, []string{"server"}, cli.disconnects)
}

func TestTransport_ResetToUnknownPortIsDropped(t *testing.T) {
	p := newTransportPair()
	out := p.net.GetLink("server", "client")
	p.server.transport.HandlePacket(Packet{Header: Header{Type: Reset, SourcePort: 1, DestPort: 77}}, out)
	assert.Equal(t, 0, out.Len())
}

func TestTransport_OutdatedPacketGetsReset(t *testing.T) {
	// GIVEN an endpoint created at step 10
	p := newTransportPair()
	p.env.step = 10
	p.server.transport.Serve(42, &recordingHandler{})
	out := p.net.GetLink("server", "client")

	// WHEN a packet stamped before the endpoint arrives
	p.server.transport.HandlePacket(Packet{Header: Header{Type: Data, SourcePort: 3, DestPort: 42, Timestamp: 9}}, out)

	// THEN a reset goes back with swapped ports and the original stamp
	require.Equal(t, 1, out.Len())
	f, _ := out.Extract()
	assert.Equal(t, Header{Type: Reset, SourcePort: 42, DestPort: 3, Timestamp: 9}, f.Packet.Header)
	assert.True(t, p.server.sched.IsEmpty())
}

func TestTransport_PingIsEchoed(t *testing.T) {
	p := newTransportPair()
	p.server.transport.Serve(42, &recordingHandler{})
	out := p.net.GetLink("server", "client")

	p.server.transport.HandlePacket(Packet{Header: Header{Type: Ping, SourcePort: 3, DestPort: 42}}, out)

	require.Equal(t, 1, out.Len())
	f, _ := out.Extract()
	assert.Equal(t, Ping, f.Packet.Type)
}

func TestTransport_PingOnConnectOnlyWhenEnabled(t *testing.T) {
	p := newTransportPair()
	link := p.net.GetLink("client", "server")

	p.client.transport.ConnectTo(Address{"server", 42}, &recordingHandler{})
	assert.Equal(t, 0, link.Len())

	p.net.SetPingOnConnect(true)
	p.client.transport.ConnectTo(Address{"server", 42}, &recordingHandler{})
	assert.Equal(t, 1, link.Len())
}

func TestTransport_Ports(t *testing.T) {
	p := newTransportPair()
	tr := p.client.transport
	tr.Serve(2, &recordingHandler{})

	s1 := tr.ConnectTo(Address{"server", 42}, &recordingHandler{})
	s2 := tr.ConnectTo(Address{"server", 42}, &recordingHandler{})
	assert.Equal(t, Port(1), s1.LocalPort())
	assert.Equal(t, Port(3), s2.LocalPort())

	// Closed ports are not reused by the counter.
	s1.Close()
	s3 := tr.ConnectTo(Address{"server", 42}, &recordingHandler{})
	assert.Equal(t, Port(4), s3.LocalPort())

	assert.PanicsWithValue(t, "port 2 already in use", func() { tr.Serve(2, &recordingHandler{}) })
	assert.PanicsWithValue(t, "send on closed socket", func() { s1.Send(nil) })
}

func TestTransport_ResetDropsEndpoints(t *testing.T) {
	// GIVEN a served port that is reset as on a crash
	p := newTransportPair()
	srv := &recordingHandler{}
	p.server.transport.Serve(42, srv)
	p.server.transport.Reset()
	assert.Equal(t, 0, p.server.transport.Endpoints())

	// WHEN a client sends to it
	cli := &recordingHandler{}
	sock := p.client.transport.ConnectTo(Address{"server", 42}, cli)
	sock.Send([]byte("x"))
	p.deliverAll()

	// THEN the message is never handled and the client learns of the disconnect
	assert.Empty(t, srv.messages)
	assert.Equal(t, []string{"server"}, cli.disconnects)
}
