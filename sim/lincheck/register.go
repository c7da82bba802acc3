package lincheck

import (
	"encoding/json"
	"fmt"

	"github.com/matrix-sim/matrix/sim/history"
)

const (
	RegisterWrite = "Register.Write"
	RegisterRead  = "Register.Read"
)

// RegisterModel is a single uint32 register, initially 0. Write takes a JSON
// uint32 argument; Read returns one.
type RegisterModel struct{}

var _ Model[uint32] = RegisterModel{}

func (RegisterModel) Init() uint32 {
	return 0
}

func (RegisterModel) Apply(state uint32, c history.Call) (uint32, bool) {
	switch c.Method {
	case RegisterWrite:
		var v uint32
		if err := json.Unmarshal(c.Arguments, &v); err != nil {
			return state, false
		}
		return v, true
	case RegisterRead:
		if !c.IsCompleted() {
			return state, true
		}
		var got uint32
		if err := json.Unmarshal(c.Result, &got); err != nil {
			return state, false
		}
		return state, got == state
	default:
		return state, false
	}
}

func (RegisterModel) IsMutation(c history.Call) bool {
	return c.Method == RegisterWrite
}

func (RegisterModel) Decompose(h history.History) []history.History {
	if len(h) == 0 {
		return nil
	}
	return []history.History{h}
}

func (RegisterModel) Describe(c history.Call) string {
	switch c.Method {
	case RegisterWrite:
		return fmt.Sprintf("Write(%s)", c.Arguments)
	case RegisterRead:
		if c.IsCompleted() {
			return fmt.Sprintf("Read() -> %s", c.Result)
		}
		return "Read()"
	default:
		return c.Method
	}
}
