package network

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

type testEnv struct {
	now    core.TimePoint
	step   uint64
	rng    *core.RandomSource
	actors core.ActorContext
	logger *logrus.Logger
}

func newTestEnv() *testEnv {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &testEnv{now: 100, rng: core.NewRandomSource(1), logger: logger}
}

func (e *testEnv) Now() core.TimePoint        { return e.now }
func (e *testEnv) StepNumber() uint64         { return e.step }
func (e *testEnv) Random() *core.RandomSource { return e.rng }
func (e *testEnv) Actors() *core.ActorContext { return &e.actors }
func (e *testEnv) Logger() *logrus.Logger     { return e.logger }

// fixedFlight delivers data after 10 jiffies and service packets after 3.
type fixedFlight struct{}

func (fixedFlight) Initialize(*core.RandomSource)   {}
func (fixedFlight) GlobalStartTime() core.TimePoint { return 1 }
func (fixedFlight) NewServerModel(string) timemodel.ServerTimeModel {
	return timemodel.NewAdversaryModel()
}
func (fixedFlight) EstimateRTT() core.Jiffies  { return 20 }
func (fixedFlight) Backoff() timemodel.Backoff { return timemodel.Backoff{Init: 1, Max: 10, Factor: 2} }

func (fixedFlight) FlightTime(_, _ string, kind timemodel.PacketKind) core.Jiffies {
	if kind == timemodel.PacketData {
		return 10
	}
	return 3
}

// noFlight fails the test if a flight time is ever requested.
type noFlight struct{ fixedFlight }

func (noFlight) FlightTime(string, string, timemodel.PacketKind) core.Jiffies {
	panic("flight time requested")
}

type recordingHost struct {
	name string
	got  []Packet
	outs []*Link
}

func (h *recordingHost) HostName() string { return h.name }

func (h *recordingHost) HandlePacket(p Packet, out *Link) {
	h.got = append(h.got, p)
	h.outs = append(h.outs, out)
}

// transportHost routes packets into a Transport driven by its own scheduler.
type transportHost struct {
	name      string
	sched     *process.Scheduler
	transport *Transport
}

func (h *transportHost) HostName() string { return h.name }

func (h *transportHost) HandlePacket(p Packet, out *Link) {
	h.transport.HandlePacket(p, out)
}

func (h *transportHost) drain() {
	for !h.sched.IsEmpty() {
		h.sched.TakeNext().Run()
	}
}

func newStartedNetwork(env *testEnv, hosts ...Host) *Network {
	n := New(env)
	n.SetTimeModel(fixedFlight{})
	for _, h := range hosts {
		n.AddHost(h)
	}
	n.Start()
	return n
}

type recordingHandler struct {
	messages    [][]byte
	replies     []*ReplySocket
	disconnects []string
}

func (r *recordingHandler) HandleMessage(msg []byte, reply *ReplySocket) {
	r.messages = append(r.messages, msg)
	r.replies = append(r.replies, reply)
}

func (r *recordingHandler) HandleDisconnect(peer string) {
	r.disconnects = append(r.disconnects, peer)
}
