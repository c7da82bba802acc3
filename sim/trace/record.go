// Package trace holds what a simulation leaves behind for people: the event
// log and the delivered frames, with writers for both.
// It does not import the sim package, so the World can depend on it.
package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
)

// LogEvent is one captured log entry.
type LogEvent struct {
	Time      core.TimePoint
	Step      uint64
	Level     logrus.Level
	Actor     string
	Component string
	TraceID   string // optional
	Message   string
}

// EventLog is the ordered list of captured events of one run.
type EventLog []LogEvent
