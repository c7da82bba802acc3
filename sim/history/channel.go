package history

import (
	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/rpc"
	"github.com/matrix-sim/matrix/sim/server"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

type recordingChannel struct {
	inner rpc.Channel
	rec   *Recorder
}

// WrapChannel records every call made through ch.
//
// A successful call is Completed. A call that failed with TransportError or
// ExecutionError may have taken effect and is Lost. Any other failure is
// removed from the history.
func WrapChannel(ch rpc.Channel, rec *Recorder) rpc.Channel {
	return &recordingChannel{inner: ch, rec: rec}
}

func (c *recordingChannel) Call(method string, input []byte, opts rpc.CallOptions) *process.Future[[]byte] {
	cookie := c.rec.CallStarted(method, input)
	if opts.TraceID != "" {
		c.rec.AddLabel(cookie, opts.TraceID)
	}
	f := c.inner.Call(method, input, opts)
	f.Subscribe(func() {
		if c.rec.IsFinalized() {
			return
		}
		out, err := f.Result()
		switch {
		case err == nil:
			c.rec.CallCompleted(cookie, out)
		case maybeCompleted(err):
			c.rec.CallLost(cookie)
		default:
			c.rec.RemoveCall(cookie)
		}
	})
	return f
}

func maybeCompleted(err error) bool {
	code, ok := rpc.CodeOf(err)
	return ok && (code == rpc.TransportError || code == rpc.ExecutionError)
}

func (c *recordingChannel) Peer() string {
	return c.inner.Peer()
}

func (c *recordingChannel) Close() {
	c.inner.Close()
}

// ClientChannel builds the channel stack of a test client talking to every
// host of pool on port.
//
// With logRetries every attempt is its own history entry:
// Retries -> History -> Random -> [Transport]. Otherwise the retried
// call is recorded once: History -> Retries -> Random -> [Transport].
func ClientChannel(rt *server.Runtime, rec *Recorder, pool string, port network.Port, backoff timemodel.Backoff, logRetries bool) rpc.Channel {
	client := rpc.NewClient(rt)
	var peers []rpc.Channel
	for _, host := range rt.ListPool(pool) {
		peers = append(peers, client.Dial(network.Address{Host: host, Port: port}))
	}
	random := rpc.NewRandomChannel(rt, peers)
	if logRetries {
		return rpc.WithRetries(WrapChannel(random, rec), rt, backoff)
	}
	return WrapChannel(rpc.WithRetries(random, rt, backoff), rec)
}
