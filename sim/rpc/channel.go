package rpc

import (
	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/process"
)

// CallOptions tune a single call.
type CallOptions struct {
	// Timeout in local jiffies; 0 waits forever.
	Timeout core.Jiffies
	// TraceID labels the call in recorded histories.
	TraceID string
}

// Channel sends requests to one logical peer.
type Channel interface {
	Call(method string, input []byte, opts CallOptions) *process.Future[[]byte]
	Peer() string
	Close()
}

// Call invokes method on ch with a typed request and blocks the current
// fiber until the typed response arrives.
func Call[Req, Resp any](p process.Parker, ch Channel, method string, req Req, opts CallOptions) (Resp, error) {
	return process.Await(p, Go[Req, Resp](ch, method, req, opts))
}

// Go is the non-blocking form of Call.
func Go[Req, Resp any](ch Channel, method string, req Req, opts CallOptions) *process.Future[Resp] {
	input, err := Marshal(req)
	if err != nil {
		return process.Failed[Resp](err)
	}
	return process.Then(ch.Call(method, input, opts), func(out []byte, err error) (Resp, error) {
		var resp Resp
		if err != nil {
			return resp, err
		}
		err = Unmarshal(out, &resp)
		return resp, err
	})
}
