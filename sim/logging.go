package sim

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/trace"
)

// eventHook captures every entry of the World logger into the event log,
// stamping it with virtual time, step number and the active actor.
type eventHook struct {
	w            *World
	level        logrus.Level
	components   map[string]logrus.Level
	console      io.Writer
	consoleLevel logrus.Level
	file         io.Writer
	events       trace.EventLog
}

func newEventHook(w *World) *eventHook {
	return &eventHook{
		w:          w,
		level:      logrus.InfoLevel,
		components: make(map[string]logrus.Level),
	}
}

// minLevel is the most verbose level any component asks for.
func (h *eventHook) minLevel() logrus.Level {
	level := h.level
	for _, l := range h.components {
		if l > level {
			level = l
		}
	}
	return level
}

func (h *eventHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *eventHook) Fire(entry *logrus.Entry) error {
	component, _ := entry.Data["component"].(string)
	limit, ok := h.components[component]
	if !ok {
		limit = h.level
	}
	if entry.Level > limit {
		return nil
	}

	actor := h.w.actorCtx.CurrentName()
	entry.Data["t"] = int64(h.w.clock)
	entry.Data["step"] = h.w.stepNumber
	entry.Data["actor"] = actor

	traceID, _ := entry.Data["trace_id"].(string)
	e := trace.LogEvent{
		Time:      h.w.clock,
		Step:      h.w.stepNumber,
		Level:     entry.Level,
		Actor:     actor,
		Component: component,
		TraceID:   traceID,
		Message:   entry.Message,
	}
	h.events = append(h.events, e)

	if h.file != nil {
		fmt.Fprintln(h.file, trace.FormatEvent(e))
	}
	if h.console != nil && entry.Level <= h.consoleLevel {
		fmt.Fprintln(h.console, trace.FormatEvent(e))
	}
	return nil
}
