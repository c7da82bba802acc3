package process

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

type fixedServerModel struct {
	timemodel.Adversary
	drift  int64
	reset  core.Jiffies
	offset core.Jiffies
}

func (m fixedServerModel) InitClockDrift() int64             { return m.drift }
func (m fixedServerModel) ResetMonotonicClock() core.Jiffies { return m.reset }
func (m fixedServerModel) InitWallClockOffset() core.Jiffies { return m.offset }

func TestDrift(t *testing.T) {
	tests := []struct {
		name    string
		drift   Drift
		real    core.Jiffies
		elapsed core.Jiffies
		user    core.Jiffies
		sleep   core.Jiffies
	}{
		{"no drift", 0, 100, 100, 100, 100},
		{"x3", 200, 100, 300, 300, 100},
		{"x0.25", -75, 100, 25, 25, 100},
		{"tiny sleep rounds up", 200, 1, 3, 1, 1},
		{"zero sleep", 200, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.elapsed, tt.drift.Elapsed(tt.real))
			assert.Equal(t, tt.sleep, tt.drift.SleepOrTimeout(tt.user))
		})
	}
}

func TestMonotonicClock_DriftsFromReset(t *testing.T) {
	// GIVEN a clock with +100% drift initialized at world time 1000
	now := core.TimePoint(1000)
	c := NewMonotonicClock(func() core.TimePoint { return now })
	c.Init(fixedServerModel{drift: 100, reset: 7})
	assert.Equal(t, core.TimePoint(7), c.Now())

	// WHEN world time advances by 50
	now = 1050

	// THEN the clock advanced twice as fast
	assert.Equal(t, core.TimePoint(107), c.Now())
	assert.Equal(t, core.Jiffies(50), c.SleepOrTimeout(100))

	// AND a reset restarts it
	c.Reset(fixedServerModel{drift: 100, reset: 3})
	assert.Equal(t, core.TimePoint(3), c.Now())
}

func TestWallClock_Offset(t *testing.T) {
	now := core.TimePoint(500)
	c := NewWallClock(func() core.TimePoint { return now })
	c.Init(fixedServerModel{offset: 40})
	assert.Equal(t, core.TimePoint(540), c.Now())
	c.AdjustOffset(fixedServerModel{offset: 2})
	assert.Equal(t, core.TimePoint(502), c.Now())
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	buf := m.Copy([]byte("abc"))
	assert.Equal(t, []byte("abc"), buf)
	m.Charge(10)
	assert.Equal(t, int64(13), m.BytesAllocated())
	assert.Equal(t, int64(2), m.Allocations())
	m.Release(3)
	assert.Equal(t, int64(10), m.BytesAllocated())
	assert.Panics(t, func() { m.Release(100) })
	m.Reset()
	assert.Equal(t, int64(0), m.BytesAllocated())
}
