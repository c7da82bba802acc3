package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-sim/matrix/sim/core"
)

func dataPacket(payload string) Packet {
	return Packet{Header: Header{Type: Data, SourcePort: 1, DestPort: 2}, Payload: []byte(payload)}
}

func TestLink_LoopbackDeliversNextJiffyWithoutRandomness(t *testing.T) {
	env := newTestEnv()
	a := &recordingHost{name: "a"}
	n := New(env)
	n.SetTimeModel(noFlight{})
	n.AddHost(a)
	n.Start()

	n.GetLink("a", "a").Add(dataPacket("x"))

	assert.Equal(t, core.TimePoint(101), n.NextStepTime())
	assert.Equal(t, uint64(0), env.rng.Draws())
}

func TestLink_ExtractsInTimeOrder(t *testing.T) {
	// GIVEN packets sent at increasing times with mixed flight times
	env := newTestEnv()
	a, b := &recordingHost{name: "a"}, &recordingHost{name: "b"}
	n := newStartedNetwork(env, a, b)
	link := n.GetLink("a", "b")

	link.Add(dataPacket("d1"))                   // at 110
	link.Add(Packet{Header: Header{Type: Ping}}) // at 103
	env.now = 101
	link.Add(dataPacket("d2"))                    // at 111
	link.Add(Packet{Header: Header{Type: Reset}}) // at 104

	// WHEN extracting everything
	var times []core.TimePoint
	for link.Len() > 0 {
		_, at := link.Extract()
		times = append(times, at)
	}

	// THEN delivery times never decrease
	assert.Equal(t, []core.TimePoint{103, 104, 110, 111}, times)
}

func TestLink_PauseSemantics(t *testing.T) {
	env := newTestEnv()
	a, b := &recordingHost{name: "a"}, &recordingHost{name: "b"}
	n := newStartedNetwork(env, a, b)
	link := n.GetLink("a", "b")
	link.Add(dataPacket("held"))

	link.Pause()
	assert.PanicsWithValue(t, "link already paused", func() { link.Pause() })
	assert.PanicsWithValue(t, "link is paused", func() { link.Extract() })
	assert.False(t, n.IsRunnable())

	// Frames are accepted while paused.
	link.Add(dataPacket("late"))
	assert.Equal(t, 2, link.Len())

	// WHEN resuming after the first frame became overdue
	env.now = 500
	link.Resume()

	// THEN overdue frames are due one jiffy later
	assert.True(t, n.IsRunnable())
	assert.Equal(t, core.TimePoint(501), n.NextStepTime())
	f1, _ := link.Extract()
	f2, _ := link.Extract()
	assert.Equal(t, "held", string(f1.Packet.Payload))
	assert.Equal(t, "late", string(f2.Packet.Payload))

	// Resume on a running link is a no-op.
	assert.NotPanics(t, link.Resume)
}

func TestLink_ResumeDefersFrameDueNow(t *testing.T) {
	// GIVEN a paused link holding a frame due at 110
	env := newTestEnv()
	n := newStartedNetwork(env, &recordingHost{name: "a"}, &recordingHost{name: "b"})
	link := n.GetLink("a", "b")
	link.Pause()
	link.Add(dataPacket("due-now"))

	// WHEN resuming exactly at its delivery time
	env.now = 110
	link.Resume()

	// THEN it is delivered no earlier than now+1
	assert.Equal(t, core.TimePoint(111), n.NextStepTime())
}

func TestNetwork_StepDeliversEarliestFrame(t *testing.T) {
	// GIVEN frames on two links
	env := newTestEnv()
	a, b, c := &recordingHost{name: "a"}, &recordingHost{name: "b"}, &recordingHost{name: "c"}
	n := newStartedNetwork(env, a, b, c)
	n.GetLink("a", "c").Add(dataPacket("to-c"))
	n.GetLink("a", "b").Add(Packet{Header: Header{Type: Ping, SourcePort: 5, DestPort: 6}})

	// WHEN stepping
	require.True(t, n.IsRunnable())
	assert.Equal(t, core.TimePoint(103), n.NextStepTime())
	env.now = n.NextStepTime()
	n.Step()

	// THEN the ping reached b with the reverse link as reply path
	require.Len(t, b.got, 1)
	assert.Equal(t, Ping, b.got[0].Type)
	assert.Equal(t, "b", b.outs[0].Start().HostName())
	assert.Equal(t, "a", b.outs[0].End().HostName())

	env.now = n.NextStepTime()
	n.Step()
	require.Len(t, c.got, 1)
	assert.False(t, n.IsRunnable())

	// AND the listener saw both frames
	assert.Equal(t, 2, n.FrameCount())
	assert.Equal(t, "c", n.Frame(1).Dest)
	assert.Equal(t, core.TimePoint(110), n.Frames()[1].DeliveryTime)
}

func TestNetwork_DigestDependsOnDeliveries(t *testing.T) {
	run := func(payload string) uint64 {
		env := newTestEnv()
		a, b := &recordingHost{name: "a"}, &recordingHost{name: "b"}
		n := newStartedNetwork(env, a, b)
		n.GetLink("a", "b").Add(dataPacket(payload))
		env.now = n.NextStepTime()
		n.Step()
		return n.Digest()
	}
	assert.Equal(t, run("abc"), run("abc"))
	assert.NotEqual(t, run("abc"), run("abcd"))
}

func TestNetwork_SplitAndHeal(t *testing.T) {
	env := newTestEnv()
	a, b, c := &recordingHost{name: "a"}, &recordingHost{name: "b"}, &recordingHost{name: "c"}
	n := newStartedNetwork(env, a, b, c)

	n.Split([]string{"a"})
	assert.True(t, n.GetLink("a", "b").IsPaused())
	assert.True(t, n.GetLink("c", "a").IsPaused())
	assert.False(t, n.GetLink("b", "c").IsPaused())
	assert.False(t, n.GetLink("a", "a").IsPaused())

	// Overlapping partitions do not double-pause.
	assert.NotPanics(t, func() { n.Isolate("b") })

	n.Heal()
	for _, from := range n.Hosts() {
		for _, to := range n.Hosts() {
			assert.False(t, n.GetLink(from, to).IsPaused())
		}
	}
}

func TestNetwork_ShutdownDropsFrames(t *testing.T) {
	env := newTestEnv()
	a, b := &recordingHost{name: "a"}, &recordingHost{name: "b"}
	n := newStartedNetwork(env, a, b)
	n.GetLink("a", "b").Add(dataPacket("x"))
	assert.Equal(t, 1, n.InFlight())

	n.Shutdown()
	assert.False(t, n.IsRunnable())
	assert.Equal(t, 0, n.InFlight())
}

func TestNetwork_RegistrationErrors(t *testing.T) {
	env := newTestEnv()
	n := New(env)
	n.AddHost(&recordingHost{name: "a"})
	assert.PanicsWithValue(t, `duplicate host "a"`, func() { n.AddHost(&recordingHost{name: "a"}) })
	assert.PanicsWithValue(t, "Network.Start() without time model", n.Start)

	n.SetTimeModel(fixedFlight{})
	n.Start()
	assert.PanicsWithValue(t, "Network.AddHost() after Start()", func() { n.AddHost(&recordingHost{name: "b"}) })
	assert.PanicsWithValue(t, `unknown host "zzz"`, func() { n.GetLink("a", "zzz") })
}
