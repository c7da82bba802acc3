package rpc

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/server"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// retriesChannel repeats calls that failed with TransportError, sleeping
// with exponential backoff between attempts. Other outcomes pass through.
type retriesChannel struct {
	inner   Channel
	rt      *server.Runtime
	backoff timemodel.Backoff
	log     *logrus.Entry
}

func WithRetries(inner Channel, rt *server.Runtime, backoff timemodel.Backoff) Channel {
	return &retriesChannel{
		inner:   inner,
		rt:      rt,
		backoff: backoff,
		log:     rt.ComponentLogger("RPC-Retries"),
	}
}

func (c *retriesChannel) Call(method string, input []byte, opts CallOptions) *process.Future[[]byte] {
	f, p := process.NewContract[[]byte]()
	c.rt.Spawn("retries:"+method, func() {
		delay := c.backoff.Init
		for attempt := 1; ; attempt++ {
			out, err := process.Await(c.rt, c.inner.Call(method, input, opts))
			if !errors.Is(err, ErrTransport) {
				p.Set(out, err)
				return
			}
			c.log.Warnf("%s to %s failed (attempt %d): %v, retry in %d", method, c.inner.Peer(), attempt, err, delay)
			c.rt.Sleep(delay)
			delay = c.backoff.Next(delay)
		}
	})
	return f
}

func (c *retriesChannel) Peer() string {
	return c.inner.Peer()
}

func (c *retriesChannel) Close() {
	c.inner.Close()
}
