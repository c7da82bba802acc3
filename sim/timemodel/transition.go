package timemodel

import "github.com/matrix-sim/matrix/sim/core"

// Transition switches from one model to another at a fixed virtual time.
// Server models are picked when the server starts; packets consult the model
// active at send time.
type Transition struct {
	now    func() core.TimePoint
	before TimeModel
	after  TimeModel
	at     core.TimePoint
}

// NewTransition builds a model that behaves like before until at, then like
// after. now reads the World clock.
func NewTransition(now func() core.TimePoint, before, after TimeModel, at core.TimePoint) *Transition {
	return &Transition{now: now, before: before, after: after, at: at}
}

func (m *Transition) current() TimeModel {
	if m.now() < m.at {
		return m.before
	}
	return m.after
}

func (m *Transition) Initialize(rng *core.RandomSource) {
	m.before.Initialize(rng)
	m.after.Initialize(rng)
}

func (m *Transition) GlobalStartTime() core.TimePoint {
	return m.before.GlobalStartTime()
}

func (m *Transition) NewServerModel(host string) ServerTimeModel {
	return m.current().NewServerModel(host)
}

func (m *Transition) EstimateRTT() core.Jiffies {
	return m.current().EstimateRTT()
}

func (m *Transition) FlightTime(src, dst string, kind PacketKind) core.Jiffies {
	return m.current().FlightTime(src, dst, kind)
}

func (m *Transition) Backoff() Backoff {
	return m.current().Backoff()
}
