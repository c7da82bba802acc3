package adversary_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrix-sim/matrix/sim"
	"github.com/matrix-sim/matrix/sim/adversary"
	"github.com/matrix-sim/matrix/sim/server"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

func idle(rt *server.Runtime) {
	for {
		rt.Sleep(100)
	}
}

func newWorld(seed int64, adv server.Program) *sim.World {
	w := sim.NewWorld(seed, sim.WithTimeModel(timemodel.NewCalm()))
	w.AddPool("kv", idle, 3)
	w.AddAdversary(adv)
	return w
}

func launches(w *sim.World) int {
	total := 0
	for _, h := range w.ListPool("kv") {
		total += w.Server(h).Launches()
	}
	return total
}

func messages(w *sim.World, actor string) []string {
	var out []string
	for _, e := range w.EventLog() {
		if e.Actor == actor {
			out = append(out, e.Message)
		}
	}
	return out
}

func hasPrefix(lines []string, prefix string) bool {
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			return true
		}
	}
	return false
}

func TestLoop_Faults(t *testing.T) {
	tests := []struct {
		fault  string
		expect string
	}{
		{fault: "star", expect: "Make star with center at Server-kv-"},
		{fault: "split", expect: "Split [Server-kv-"},
		{fault: "isolate", expect: "Isolate Server-kv-"},
		{fault: "crash", expect: "Crash Server-kv-"},
		{fault: "pause", expect: "Pause Server-kv-"},
		{fault: "clock", expect: "Adjust wall clock of Server-kv-"},
	}
	for _, tc := range tests {
		t.Run(tc.fault, func(t *testing.T) {
			// GIVEN an adversary looping over one fault
			f, err := adversary.FaultByName(tc.fault)
			require.NoError(t, err)
			w := newWorld(3, adversary.Loop("kv", adversary.DefaultTiming, f))

			// WHEN the world runs
			w.Start()
			w.RunFor(5000)
			w.Stop()

			// THEN the fault was injected
			assert.True(t, hasPrefix(messages(w, "Adversary-1"), tc.expect), "%v", messages(w, "Adversary-1"))
		})
	}
}

func TestCrashOne_RelaunchesVictim(t *testing.T) {
	w := newWorld(5, adversary.Loop("kv", adversary.Timing{WaitMin: 10, WaitMax: 20, HoldMin: 10, HoldMax: 20}, adversary.CrashOne))
	w.Start()
	w.RunFor(1000)

	w.Stop()

	assert.Greater(t, launches(w), 3)
}

func TestLoop_Deterministic(t *testing.T) {
	run := func() uint64 {
		w := newWorld(11, adversary.Loop("kv", adversary.DefaultTiming, adversary.Mixed(adversary.Star, adversary.CrashOne, adversary.PauseOne)))
		w.Start()
		w.RunFor(10000)
		return w.Stop()
	}
	assert.Equal(t, run(), run())
}

func TestLoop_EmptyPoolIdles(t *testing.T) {
	w := sim.NewWorld(1, sim.WithTimeModel(timemodel.NewCalm()))
	w.AddAdversary(adversary.Loop("missing", adversary.DefaultTiming, adversary.Star))
	w.Start()
	w.RunFor(100)
	w.Stop()
	assert.Contains(t, messages(w, "Adversary-1"), `pool "missing" is empty, adversary idle`)
}

const configScript = `
return {
  pool = "kv",
  rounds = 2,
  wait_min = 5, wait_max = 10,
  faults = {"star", "crash"},
}
`

const roundScript = `
function round(i)
  local hosts = matrix.pool()
  matrix.log("round " .. i .. " over " .. #hosts .. " hosts")
  matrix.crash(hosts[1])
  matrix.sleep(50)
  matrix.launch(hosts[1])
  matrix.star(hosts[2])
  matrix.sleep(matrix.random(10, 20))
  matrix.heal()
end

return { pool = "kv", rounds = 2 }
`

func TestNewLuaStrategy_Config(t *testing.T) {
	s, err := adversary.NewLuaStrategy("config.lua", configScript)
	require.NoError(t, err)
	assert.Equal(t, adversary.LuaConfig{
		Pool: "kv", Rounds: 2, WaitMin: 5, WaitMax: 10, Faults: []string{"star", "crash"},
	}, s.Config())
}

func TestNewLuaStrategy_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		script string
		err    string
	}{
		{name: "syntax", script: "return {", err: "parsing bad.lua"},
		{name: "not a table", script: "return 42", err: "bad.lua did not return a config table"},
		{name: "no pool", script: `return { faults = {"star"} }`, err: "pool is required"},
		{name: "unknown fault", script: `return { pool = "kv", faults = {"meteor"} }`, err: `unknown fault "meteor"`},
		{name: "nothing to do", script: `return { pool = "kv" }`, err: "script defines neither round() nor faults"},
		{name: "top level fault", script: `matrix.heal() return { pool = "kv", faults = {"star"} }`, err: "matrix.heal is only available inside round()"},
		{name: "bad range", script: `return { pool = "kv", faults = {"star"}, hold_min = 5, hold_max = 1 }`, err: "empty delay range"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := adversary.NewLuaStrategy("bad.lua", tc.script)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

func TestLuaStrategy_Rounds(t *testing.T) {
	// GIVEN a script crashing and relaunching the first host every round
	s, err := adversary.NewLuaStrategy("round.lua", roundScript)
	require.NoError(t, err)
	w := newWorld(7, s.Program())

	// WHEN it runs to completion
	w.Start()
	w.RunFor(2000)
	w.Stop()

	// THEN both rounds happened and the host was launched three times
	msgs := messages(w, "Adversary-1")
	assert.Contains(t, msgs, "round 1 over 3 hosts")
	assert.Contains(t, msgs, "round 2 over 3 hosts")
	assert.Contains(t, msgs, "adversary script round.lua done")
	assert.Equal(t, 3, w.Server("Server-kv-1").Launches())
}

func TestLuaStrategy_BuiltinFaults(t *testing.T) {
	s, err := adversary.NewLuaStrategy("config.lua", configScript)
	require.NoError(t, err)
	w := newWorld(7, s.Program())
	w.Start()
	w.RunFor(3000)
	w.Stop()
	assert.Contains(t, messages(w, "Adversary-1"), "adversary script config.lua done")
}
