package timemodel

import "github.com/matrix-sim/matrix/sim/core"

// Calm models a well-behaved datacenter: nearly synchronized clocks, narrow
// flight times and fast disks. Useful to tell protocol bugs apart from
// timing-induced ones.
type Calm struct {
	rng *core.RandomSource
}

func NewCalm() *Calm {
	return &Calm{}
}

func (m *Calm) Initialize(rng *core.RandomSource) {
	m.rng = rng
}

func (m *Calm) GlobalStartTime() core.TimePoint {
	return 1
}

func (m *Calm) NewServerModel(string) ServerTimeModel {
	return &calmServer{rng: m.rng}
}

func (m *Calm) EstimateRTT() core.Jiffies {
	return 20
}

func (m *Calm) FlightTime(_, _ string, kind PacketKind) core.Jiffies {
	if kind != PacketData {
		return 10
	}
	return core.Jiffies(m.rng.Between(5, 11))
}

func (m *Calm) Backoff() Backoff {
	return Backoff{Init: 20, Max: 200, Factor: 2}
}

type calmServer struct {
	rng *core.RandomSource
}

func (s *calmServer) InitClockDrift() int64 {
	return -2 + int64(s.rng.Below(5))
}

func (s *calmServer) ResetMonotonicClock() core.Jiffies {
	return core.Jiffies(s.rng.Between(1, 10))
}

func (s *calmServer) InitWallClockOffset() core.Jiffies {
	return core.Jiffies(s.rng.Below(5))
}

func (s *calmServer) TrueTimeUncertainty() core.Jiffies {
	return core.Jiffies(s.rng.Between(2, 6))
}

func (s *calmServer) DiskWrite(int) core.Jiffies {
	return core.Jiffies(s.rng.Between(5, 20))
}

func (s *calmServer) DiskRead(int) core.Jiffies {
	return core.Jiffies(s.rng.Between(2, 10))
}

func (s *calmServer) GetCacheMiss() bool {
	return s.rng.Below(50) == 0
}

func (s *calmServer) IteratorCacheMiss() bool {
	return s.rng.Below(50) == 0
}

func (s *calmServer) ThreadPause() core.Jiffies {
	return core.Jiffies(s.rng.Between(1, 5))
}
