package timemodel

import "github.com/matrix-sim/matrix/sim/core"

// Crazy models an asynchronous world: drifting clocks, wildly varying packet
// flight times and slow disks. It is the default model.
type Crazy struct {
	rng *core.RandomSource
}

func NewCrazy() *Crazy {
	return &Crazy{}
}

func (m *Crazy) Initialize(rng *core.RandomSource) {
	m.rng = rng
}

func (m *Crazy) GlobalStartTime() core.TimePoint {
	return core.TimePoint(m.rng.Between(1, 200))
}

func (m *Crazy) NewServerModel(string) ServerTimeModel {
	return &crazyServer{rng: m.rng}
}

func (m *Crazy) EstimateRTT() core.Jiffies {
	return DefaultRTT
}

func (m *Crazy) FlightTime(_, _ string, kind PacketKind) core.Jiffies {
	if kind != PacketData {
		// Service packets do not consume randomness.
		return 50
	}
	switch {
	case m.rng.Next()%11 == 0: // slow
		return core.Jiffies(m.rng.Between(400, 1000))
	case m.rng.Next()%7 == 0: // fast
		return core.Jiffies(m.rng.Between(5, 10))
	case m.rng.Next()%5 == 0: // unpredictable
		return core.Jiffies(m.rng.Between(10, 1000))
	default:
		return core.Jiffies(m.rng.Between(30, 60))
	}
}

func (m *Crazy) Backoff() Backoff {
	return Backoff{Init: 50, Max: 1000, Factor: 2}
}

type crazyServer struct {
	rng *core.RandomSource
}

func (s *crazyServer) InitClockDrift() int64 {
	switch {
	case s.rng.Next()%3 == 0:
		// x3-x4 faster than global time
		return 200 + int64(s.rng.Below(100))
	case s.rng.Next()%2 == 0:
		return 75 + int64(s.rng.Below(25))
	default:
		return -75 + int64(s.rng.Below(25+1))
	}
}

func (s *crazyServer) ResetMonotonicClock() core.Jiffies {
	return core.Jiffies(s.rng.Between(1, 100))
}

func (s *crazyServer) InitWallClockOffset() core.Jiffies {
	return core.Jiffies(s.rng.Below(1000))
}

func (s *crazyServer) TrueTimeUncertainty() core.Jiffies {
	if s.rng.Next()%7 == 0 {
		return core.Jiffies(s.rng.Between(300, 1000))
	}
	return core.Jiffies(s.rng.Between(5, 50))
}

func (s *crazyServer) DiskWrite(int) core.Jiffies {
	return core.Jiffies(s.rng.Between(10, 250))
}

func (s *crazyServer) DiskRead(int) core.Jiffies {
	return core.Jiffies(s.rng.Between(10, 50))
}

func (s *crazyServer) GetCacheMiss() bool {
	return s.rng.Below(11) == 0
}

func (s *crazyServer) IteratorCacheMiss() bool {
	return s.rng.Below(17) == 0
}

func (s *crazyServer) ThreadPause() core.Jiffies {
	return core.Jiffies(s.rng.Between(5, 50))
}
