package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/rpc"
)

type clock struct{ now core.TimePoint }

func (c *clock) Now() core.TimePoint { return c.now }

func TestRecorder_Lifecycle(t *testing.T) {
	// GIVEN three calls started at different times
	clk := &clock{now: 10}
	rec := NewRecorder(clk.Now)
	rec.CallStarted("KV.Set", []byte("a=1"))
	clk.now = 12
	get := rec.CallStarted("KV.Get", []byte("a"))
	rec.AddLabel(get, "Get-1")
	clk.now = 15
	cas := rec.CallStarted("KV.Cas", []byte("a"))
	dropped := rec.CallStarted("KV.Get", []byte("b"))

	// WHEN one completes, one is removed and the rest stay running
	clk.now = 20
	rec.CallCompleted(get, []byte("1"))
	rec.RemoveCall(dropped)
	rec.CallLost(cas)
	assert.Equal(t, 1, rec.Running())
	rec.Finalize()

	// THEN the history has the completed call, the explicitly lost one and
	// the still running one turned lost
	h := rec.History()
	require.Len(t, h, 3)
	assert.Equal(t, Call{
		Method: "KV.Get", Arguments: []byte("a"), Result: []byte("1"),
		StartTime: 12, EndTime: 20, Outcome: Completed, Labels: []string{"Get-1"},
	}, h[0])
	assert.Equal(t, "KV.Cas", h[1].Method)
	assert.True(t, h[1].IsLost())
	assert.Equal(t, "KV.Set", h[2].Method)
	assert.Equal(t, core.TimePoint(10), h[2].StartTime)
	assert.Equal(t, core.Infinity, h[2].EndTime)
	assert.Equal(t, 1, rec.NumCompletedCalls())
	assert.Equal(t, 1, h.Completed())
}

func TestRecorder_Misuse(t *testing.T) {
	rec := NewRecorder((&clock{}).Now)
	assert.PanicsWithValue(t, "history is not finalized", func() { rec.History() })
	assert.PanicsWithValue(t, "unknown call cookie 7", func() { rec.CallLost(7) })

	rec.Finalize()
	assert.PanicsWithValue(t, "history recorder already finalized", func() { rec.CallStarted("x", nil) })
	assert.PanicsWithValue(t, "history recorder already finalized", func() { rec.Finalize() })
	assert.Empty(t, rec.History())
}

func TestPrecedesInRealTime(t *testing.T) {
	a := Call{StartTime: 1, EndTime: 5, Outcome: Completed}
	b := Call{StartTime: 6, EndTime: 9, Outcome: Completed}
	touching := Call{StartTime: 5, EndTime: 9, Outcome: Completed}
	lostCall := Call{StartTime: 0, EndTime: core.Infinity, Outcome: Lost}

	assert.True(t, PrecedesInRealTime(a, b))
	assert.False(t, PrecedesInRealTime(b, a))
	assert.False(t, PrecedesInRealTime(a, touching), "overlapping at an instant is concurrent")
	assert.False(t, PrecedesInRealTime(lostCall, b))
}

// stubChannel completes each call with a preset outcome.
type stubChannel struct {
	results map[string]error
	closed  bool
}

func (c *stubChannel) Call(method string, input []byte, _ rpc.CallOptions) *process.Future[[]byte] {
	if err := c.results[method]; err != nil {
		return process.Failed[[]byte](err)
	}
	return process.Ready(append([]byte("ok:"), input...))
}

func (c *stubChannel) Peer() string { return "stub" }
func (c *stubChannel) Close()       { c.closed = true }

func TestWrapChannel_Classification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantLen int
		want    Outcome
	}{
		{name: "ok is completed", err: nil, wantLen: 1, want: Completed},
		{name: "transport error is lost", err: &rpc.Error{Code: rpc.TransportError}, wantLen: 1, want: Lost},
		{name: "execution error is lost", err: &rpc.Error{Code: rpc.ExecutionError, Message: "boom"}, wantLen: 1, want: Lost},
		{name: "timeout is removed", err: rpc.ErrTimeout, wantLen: 0},
		{name: "cancelled is removed", err: rpc.ErrCancelled, wantLen: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewRecorder((&clock{now: 3}).Now)
			inner := &stubChannel{results: map[string]error{"M": tc.err}}
			ch := WrapChannel(inner, rec)

			ch.Call("M", []byte("x"), rpc.CallOptions{TraceID: "trace-1"})
			rec.Finalize()

			h := rec.History()
			require.Len(t, h, tc.wantLen)
			if tc.wantLen == 1 {
				assert.Equal(t, tc.want, h[0].Outcome)
				assert.Equal(t, []string{"trace-1"}, h[0].Labels)
			}
			assert.Equal(t, "stub", ch.Peer())
		})
	}
}
