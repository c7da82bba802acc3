package rpc

import (
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/server"
)

// randomChannel routes every call to a peer chosen uniformly at random.
type randomChannel struct {
	rt       *server.Runtime
	channels []Channel
}

// NewRandomChannel panics when channels is empty.
func NewRandomChannel(rt *server.Runtime, channels []Channel) Channel {
	if len(channels) == 0 {
		panic("rpc: random channel over no peers")
	}
	return &randomChannel{rt: rt, channels: channels}
}

func (c *randomChannel) Call(method string, input []byte, opts CallOptions) *process.Future[[]byte] {
	i := c.rt.RandomNumber(uint64(len(c.channels)))
	return c.channels[i].Call(method, input, opts)
}

func (c *randomChannel) Peer() string {
	return "Random"
}

func (c *randomChannel) Close() {
	for _, ch := range c.channels {
		ch.Close()
	}
}
