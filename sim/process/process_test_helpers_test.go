package process

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
)

// testLoop drives a single scheduler the way a server's Step does.
type testLoop struct {
	now    core.TimePoint
	sched  *Scheduler
	mem    *Memory
	fibers *Fibers
}

func newTestLoop() *testLoop {
	l := &testLoop{mem: NewMemory()}
	l.sched = NewScheduler(func() core.TimePoint { return l.now })
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	l.fibers = NewFibers(l.sched, l.mem, logger.WithField("component", "test"))
	return l
}

// runAll executes tasks until the queue drains or limit steps were made.
func (l *testLoop) runAll(limit int) int {
	steps := 0
	for !l.sched.IsEmpty() && steps < limit {
		l.now = l.sched.NextTaskTime()
		l.sched.TakeNext().Run()
		steps++
	}
	return steps
}
