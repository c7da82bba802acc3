package rpc

import (
	"encoding/json"
	"errors"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/server"
)

// Client dials transport channels from one server.
type Client struct {
	rt  *server.Runtime
	log *logrus.Entry
}

func NewClient(rt *server.Runtime) *Client {
	return &Client{rt: rt, log: rt.ComponentLogger("RPC-Client")}
}

// Dial returns a channel to addr. The connection is opened lazily on the
// first call and reopened after a disconnect.
func (c *Client) Dial(addr network.Address) Channel {
	return &transportChannel{
		rt:      c.rt,
		log:     c.log.WithField("peer", addr.String()),
		peer:    addr,
		pending: make(map[uint64]*process.Promise[[]byte]),
	}
}

type transportChannel struct {
	rt      *server.Runtime
	log     *logrus.Entry
	peer    network.Address
	socket  *network.ClientSocket
	pending map[uint64]*process.Promise[[]byte]
	nextID  uint64
	closed  bool
}

var _ network.SocketHandler = (*transportChannel)(nil)

func (c *transportChannel) Peer() string {
	return c.peer.String()
}

func (c *transportChannel) Call(method string, input []byte, opts CallOptions) *process.Future[[]byte] {
	if c.closed {
		return process.Failed[[]byte](newError(Cancelled, "channel to %s is closed", c.peer))
	}
	c.nextID++
	id := c.nextID
	data, err := json.Marshal(request{ID: id, Method: method, Body: input})
	if err != nil {
		return process.Failed[[]byte](newError(ExecutionError, "encode request: %v", err))
	}

	f, p := process.NewContract[[]byte]()
	c.pending[id] = p
	c.log.Infof("request #%d %s", id, method)
	c.connect().Send(data)

	if opts.Timeout <= 0 {
		return f
	}
	return process.Then(server.WithTimeout(c.rt, f, opts.Timeout), func(out []byte, err error) ([]byte, error) {
		if errors.Is(err, process.ErrTimeout) {
			delete(c.pending, id)
			return nil, newError(Timeout, "%s to %s timed out", method, c.peer)
		}
		return out, err
	})
}

func (c *transportChannel) connect() *network.ClientSocket {
	if c.socket == nil || c.socket.IsClosed() {
		c.socket = c.rt.Transport().ConnectTo(c.peer, c)
	}
	return c.socket
}

// Close cancels every pending call.
func (c *transportChannel) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
	c.failPending(Cancelled)
}

func (c *transportChannel) HandleMessage(msg []byte, _ *network.ReplySocket) {
	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		c.log.Warnf("drop malformed response: %v", err)
		return
	}
	p, ok := c.pending[resp.ID]
	if !ok {
		c.log.Debugf("response #%d has no pending request", resp.ID)
		return
	}
	delete(c.pending, resp.ID)
	c.log.Infof("response #%d", resp.ID)
	p.Set([]byte(resp.Body), resp.err())
}

// HandleDisconnect fails every pending call with TransportError: the peer
// may or may not have executed them.
func (c *transportChannel) HandleDisconnect(peer string) {
	c.log.Infof("disconnected from %s, fail %d pending requests", peer, len(c.pending))
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
	c.failPending(TransportError)
}

func (c *transportChannel) failPending(code Code) {
	ids := make([]uint64, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	// Deterministic order: completing a promise runs callbacks.
	slices.Sort(ids)
	for _, id := range ids {
		p := c.pending[id]
		delete(c.pending, id)
		p.SetError(newError(code, "request #%d to %s", id, c.peer))
	}
}
