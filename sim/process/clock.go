package process

import (
	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// Drift is a clock rate deviation in percent, valid in [-99, +inf).
//
//	0    world time rate
//	-75  x0.25
//	+100 x2
//	+200 x3
type Drift int64

// Elapsed converts a real (world) duration into the drifted user duration.
func (d Drift) Elapsed(real core.Jiffies) core.Jiffies {
	return real * core.Jiffies(100+d) / 100
}

// SleepOrTimeout converts a user duration into the real delay to schedule.
func (d Drift) SleepOrTimeout(user core.Jiffies) core.Jiffies {
	if user == 0 {
		return 0
	}
	real := user * 100 / core.Jiffies(100+d)
	if real < 1 {
		return 1
	}
	return real
}

// MonotonicClock is a server's drifting monotonic clock. It restarts from a
// model-chosen value on every server launch.
type MonotonicClock struct {
	now       func() core.TimePoint
	drift     Drift
	lastReset core.TimePoint
	init      core.Jiffies
}

func NewMonotonicClock(now func() core.TimePoint) *MonotonicClock {
	return &MonotonicClock{now: now}
}

// Init draws the drift and resets the clock.
func (c *MonotonicClock) Init(m timemodel.ServerTimeModel) {
	c.drift = Drift(m.InitClockDrift())
	c.Reset(m)
}

func (c *MonotonicClock) Reset(m timemodel.ServerTimeModel) {
	c.init = m.ResetMonotonicClock()
	c.lastReset = c.now()
}

func (c *MonotonicClock) Now() core.TimePoint {
	return core.TimePoint(c.drift.Elapsed(c.now().Sub(c.lastReset)) + c.init)
}

func (c *MonotonicClock) Drift() Drift {
	return c.drift
}

// SleepOrTimeout converts a user delay into world delay.
func (c *MonotonicClock) SleepOrTimeout(d core.Jiffies) core.Jiffies {
	return c.drift.SleepOrTimeout(d)
}

// WallClock is world time plus a per-server offset.
type WallClock struct {
	now    func() core.TimePoint
	offset core.Jiffies
}

func NewWallClock(now func() core.TimePoint) *WallClock {
	return &WallClock{now: now}
}

func (c *WallClock) Init(m timemodel.ServerTimeModel) {
	c.offset = m.InitWallClockOffset()
}

// AdjustOffset redraws the offset. Active timers are unaffected: they run on
// the monotonic clock.
func (c *WallClock) AdjustOffset(m timemodel.ServerTimeModel) {
	c.offset = m.InitWallClockOffset()
}

func (c *WallClock) Now() core.TimePoint {
	return c.now().Add(c.offset)
}
