package timemodel

import "github.com/matrix-sim/matrix/sim/core"

// Adversary is the server model every adversary host gets regardless of the
// active TimeModel: an exact clock and unit latencies, no randomness.
type Adversary struct{}

// NewAdversaryModel returns the adversary server model.
func NewAdversaryModel() ServerTimeModel {
	return Adversary{}
}

func (Adversary) InitClockDrift() int64             { return 0 }
func (Adversary) ResetMonotonicClock() core.Jiffies { return 0 }
func (Adversary) InitWallClockOffset() core.Jiffies { return 0 }
func (Adversary) TrueTimeUncertainty() core.Jiffies { return 1 }
func (Adversary) DiskWrite(int) core.Jiffies        { return 1 }
func (Adversary) DiskRead(int) core.Jiffies         { return 1 }
func (Adversary) GetCacheMiss() bool                { return false }
func (Adversary) IteratorCacheMiss() bool           { return false }
func (Adversary) ThreadPause() core.Jiffies         { return 1 }
