// Package history records client calls made during a simulation and keeps
// the frozen history handed to the linearizability checker.
package history

import (
	"fmt"

	"github.com/matrix-sim/matrix/sim/core"
)

// Outcome of a recorded call.
type Outcome int

const (
	Completed Outcome = iota
	// Lost calls may or may not have taken effect; their end is unknown.
	Lost
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Call is one client operation. For lost calls EndTime is core.Infinity and
// Result is nil.
type Call struct {
	Method    string
	Arguments []byte
	Result    []byte
	StartTime core.TimePoint
	EndTime   core.TimePoint
	Outcome   Outcome
	Labels    []string
}

func (c Call) IsCompleted() bool {
	return c.Outcome == Completed
}

func (c Call) IsLost() bool {
	return c.Outcome == Lost
}

// PrecedesInRealTime reports whether lhs completed strictly before rhs started.
func PrecedesInRealTime(lhs, rhs Call) bool {
	return lhs.IsCompleted() && lhs.EndTime < rhs.StartTime
}

// History is a finalized list of calls.
type History []Call

// Completed counts completed calls.
func (h History) Completed() int {
	n := 0
	for _, c := range h {
		if c.IsCompleted() {
			n++
		}
	}
	return n
}
