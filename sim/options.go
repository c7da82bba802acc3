package sim

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/timemodel"
)

// Option configures a World at construction.
type Option func(*World)

// WithTimeModel replaces the default crazy time model.
func WithTimeModel(tm timemodel.TimeModel) Option {
	return func(w *World) { w.tm = tm }
}

// WithLogLevel sets the minimum level captured into the event log.
// Default: info.
func WithLogLevel(level logrus.Level) Option {
	return func(w *World) { w.logs.level = level }
}

// WithComponentLevels overrides the captured level per component, e.g.
// {"Transport": logrus.WarnLevel, "Fibers": logrus.DebugLevel}.
func WithComponentLevels(levels map[string]logrus.Level) Option {
	return func(w *World) {
		for c, l := range levels {
			w.logs.components[c] = l
		}
	}
}

// WithConsole mirrors captured events at level or above to out.
func WithConsole(out io.Writer, level logrus.Level) Option {
	return func(w *World) {
		w.logs.console = out
		w.logs.consoleLevel = level
	}
}

// WithLogFile appends every captured event to out, after a separator line.
func WithLogFile(out io.Writer) Option {
	return func(w *World) { w.logs.file = out }
}
