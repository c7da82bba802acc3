package lincheck

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/anishathalye/porcupine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/history"
)

func kvSet(key string, v uint32, start, end core.TimePoint) history.Call {
	args, _ := json.Marshal(KVArgs{Key: key, Value: v})
	return history.Call{Method: KVSet, Arguments: args, Result: []byte("{}"), StartTime: start, EndTime: end}
}

func kvGet(key string, got uint32, start, end core.TimePoint) history.Call {
	args, _ := json.Marshal(KVArgs{Key: key})
	res, _ := json.Marshal(got)
	return history.Call{Method: KVGet, Arguments: args, Result: res, StartTime: start, EndTime: end}
}

func lost(c history.Call) history.Call {
	c.Outcome = history.Lost
	c.EndTime = core.Infinity
	c.Result = nil
	return c
}

func TestCheck_KV(t *testing.T) {
	tests := []struct {
		name string
		h    history.History
		want Verdict
	}{
		{
			name: "read overlapping a write sees it",
			h: history.History{
				kvSet("k", 1, 0, 10),
				kvGet("k", 1, 5, 15),
				kvSet("k", 2, 12, 20),
			},
			want: Linearizable,
		},
		{
			name: "read sees a value never written",
			h: history.History{
				kvSet("k", 1, 0, 10),
				kvGet("k", 2, 5, 15),
			},
			want: NotLinearizable,
		},
		{
			name: "stale read after a completed write",
			h: history.History{
				kvSet("k", 1, 0, 10),
				kvGet("k", 0, 11, 15),
			},
			want: NotLinearizable,
		},
		{
			name: "initial value is zero",
			h:    history.History{kvGet("k", 0, 1, 2)},
			want: Linearizable,
		},
		{
			name: "lost write may take effect",
			h: history.History{
				lost(kvSet("k", 7, 0, 0)),
				kvGet("k", 7, 5, 6),
			},
			want: Linearizable,
		},
		{
			name: "lost write may never take effect",
			h: history.History{
				lost(kvSet("k", 7, 0, 0)),
				kvGet("k", 0, 5, 6),
				kvGet("k", 0, 8, 9),
			},
			want: Linearizable,
		},
		{
			name: "lost write cannot take effect before it starts",
			h: history.History{
				kvGet("k", 7, 1, 2),
				lost(kvSet("k", 7, 5, 0)),
			},
			want: NotLinearizable,
		},
		{
			name: "keys are independent",
			h: history.History{
				kvSet("a", 1, 0, 10),
				kvSet("b", 2, 0, 10),
				kvGet("a", 1, 11, 12),
				kvGet("b", 2, 11, 12),
			},
			want: Linearizable,
		},
		{
			name: "one bad key fails the history",
			h: history.History{
				kvSet("a", 1, 0, 10),
				kvSet("b", 2, 0, 10),
				kvGet("a", 1, 11, 12),
				kvGet("b", 1, 11, 12),
			},
			want: NotLinearizable,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Check[string](KVModel{}, tc.h)
			assert.Equal(t, tc.want, r.Verdict)
			assert.Equal(t, tc.want == Linearizable, r.OK())
			if !r.OK() {
				assert.NotEmpty(t, r.SubHistory)
			}
		})
	}
}

func TestCheck_RejectExposesSubHistory(t *testing.T) {
	// GIVEN a history where only key b is broken
	h := history.History{
		kvSet("a", 1, 0, 10),
		kvGet("b", 3, 0, 10),
	}

	// WHEN it is checked
	r := Check[string](KVModel{}, h)

	// THEN the failing part holds only b's calls
	require.Equal(t, NotLinearizable, r.Verdict)
	require.Len(t, r.SubHistory, 1)
	assert.Equal(t, KVGet, r.SubHistory[0].Method)
}

func TestCleanup_DropsUnobservableCalls(t *testing.T) {
	h := history.History{
		lost(kvGet("k", 0, 0, 0)),
		lost(kvSet("k", 1, 0, 0)),
		kvGet("k", 0, 1, 2),
	}

	out := Cleanup[string](KVModel{}, h)

	require.Len(t, out, 2)
	assert.Equal(t, KVSet, out[0].Method)
	assert.Equal(t, KVGet, out[1].Method)
}

func TestCheckWithBudget_Exhausted(t *testing.T) {
	// GIVEN many concurrent writes and an impossible read
	var h history.History
	for i := 0; i < 8; i++ {
		h = append(h, kvSet("k", uint32(i+1), 0, 100))
	}
	h = append(h, kvGet("k", 99, 0, 100))

	// WHEN the budget is tiny
	r := CheckWithBudget[string](KVModel{}, h, 5)

	// THEN the result is neither accepted nor rejected
	assert.Equal(t, Unknown, r.Verdict)
	assert.Equal(t, "unknown", r.Verdict.String())
}

func regWrite(v uint32, start, end core.TimePoint) history.Call {
	args, _ := json.Marshal(v)
	return history.Call{Method: RegisterWrite, Arguments: args, StartTime: start, EndTime: end}
}

func regRead(v uint32, start, end core.TimePoint) history.Call {
	res, _ := json.Marshal(v)
	return history.Call{Method: RegisterRead, Result: res, StartTime: start, EndTime: end}
}

type regInput struct {
	write bool
	value uint32
}

var porcupineRegister = porcupine.Model{
	Partition: func(ops []porcupine.Operation) [][]porcupine.Operation {
		return [][]porcupine.Operation{ops}
	},
	Equal: func(a, b interface{}) bool { return a == b },
	Init:  func() interface{} { return uint32(0) },
	Step: func(state, input, output interface{}) (bool, interface{}) {
		in := input.(regInput)
		if in.write {
			return true, in.value
		}
		return output.(uint32) == state.(uint32), state
	},
}

func toPorcupine(h history.History) []porcupine.Operation {
	ops := make([]porcupine.Operation, 0, len(h))
	for i, c := range h {
		op := porcupine.Operation{ClientId: i, Call: int64(c.StartTime), Return: int64(c.EndTime)}
		var v uint32
		if c.Method == RegisterWrite {
			_ = json.Unmarshal(c.Arguments, &v)
			op.Input, op.Output = regInput{write: true, value: v}, uint32(0)
		} else {
			_ = json.Unmarshal(c.Result, &v)
			op.Input, op.Output = regInput{}, v
		}
		ops = append(ops, op)
	}
	return ops
}

func TestCheck_AgreesWithPorcupine(t *testing.T) {
	// GIVEN random register histories, some writes lost and some still
	// running when the history is finalized
	rng := core.NewRandomSource(2024)
	accepted, rejected, withLost := 0, 0, 0
	for i := 0; i < 300; i++ {
		var now core.TimePoint
		rec := history.NewRecorder(func() core.TimePoint { return now })
		var h history.History
		n := 2 + int(rng.Below(5))
		for j := 0; j < n; j++ {
			start := core.TimePoint(rng.Below(20))
			end := start + core.TimePoint(rng.Between(1, 10))
			v := uint32(rng.Below(3))
			if !rng.Chance(2) {
				h = append(h, regRead(v, start, end))
				continue
			}
			switch rng.Below(5) {
			case 0:
				h = append(h, lost(regWrite(v, start, end)))
			case 1:
				now = start
				args, _ := json.Marshal(v)
				rec.CallStarted(RegisterWrite, args)
			default:
				h = append(h, regWrite(v, start, end))
			}
		}
		rec.Finalize()
		h = append(h, rec.History()...)
		for _, c := range h {
			if c.IsLost() {
				withLost++
				break
			}
		}

		// WHEN both checkers run
		ours := Check[uint32](RegisterModel{}, h)
		theirs := porcupine.CheckOperations(porcupineRegister, toPorcupine(h))

		// THEN they agree
		require.Equal(t, theirs, ours.OK(), "history %d:\n%s", i, render(h))
		if theirs {
			accepted++
		} else {
			rejected++
		}
	}
	assert.NotZero(t, accepted)
	assert.NotZero(t, rejected)
	assert.NotZero(t, withLost)
}

func render(h history.History) string {
	var buf bytes.Buffer
	_ = PrintHistory(&buf, RegisterModel{}, h)
	return buf.String()
}

func TestPrintHistory(t *testing.T) {
	h := history.History{
		kvSet("a", 5, 1, 4),
		lost(kvGet("a", 0, 2, 0)),
	}
	h[0].Labels = []string{"Set-1"}

	var buf bytes.Buffer
	require.NoError(t, PrintHistory(&buf, KVModel{}, h))

	out := buf.String()
	assert.Contains(t, out, "Set(a, 5)")
	assert.Contains(t, out, "Get(a)")
	assert.Contains(t, out, "lost")
	assert.Contains(t, out, "Set-1")
	assert.Equal(t, 1, strings.Count(out, "START"), fmt.Sprintf("one header row in:\n%s", out))
}
