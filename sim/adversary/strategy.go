package adversary

import (
	"fmt"
	"slices"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/server"
)

// Fault injects one fault into pool and returns how to undo it, or nil when
// there is nothing to undo.
type Fault func(rt *server.Runtime, pool []string) (undo func())

// Timing bounds the random delays of a fault loop: the adversary waits
// [WaitMin, WaitMax) before each fault and holds it for [HoldMin, HoldMax).
type Timing struct {
	WaitMin, WaitMax core.Jiffies
	HoldMin, HoldMax core.Jiffies
}

// DefaultTiming matches the KV example: a fault every 10-1000 jiffies,
// lasting 100-300.
var DefaultTiming = Timing{WaitMin: 10, WaitMax: 1000, HoldMin: 100, HoldMax: 300}

// Loop returns an adversary program that injects fault into pool forever.
func Loop(pool string, timing Timing, fault Fault) server.Program {
	return func(rt *server.Runtime) {
		hosts := rt.ListPool(pool)
		if len(hosts) == 0 {
			rt.Logger().Warnf("pool %q is empty, adversary idle", pool)
			return
		}
		for {
			runRound(rt, timing, hosts, fault)
		}
	}
}

func runRound(rt *server.Runtime, timing Timing, hosts []string, fault Fault) {
	RandomPause(rt, timing.WaitMin, timing.WaitMax)
	undo := fault(rt, hosts)
	RandomPause(rt, timing.HoldMin, timing.HoldMax)
	if undo != nil {
		undo()
	}
}

// Star leaves a random host as the only one the others can talk to.
func Star(rt *server.Runtime, pool []string) func() {
	center := int(rt.RandomNumber(uint64(len(pool))))
	rt.Logger().Infof("Make star with center at %s", pool[center])
	net := rt.Faults().FaultyNetwork()
	MakeStar(net, pool, center)
	return net.Heal
}

// Split cuts pool in two random non-empty halves.
func Split(rt *server.Runtime, pool []string) func() {
	if len(pool) < 2 {
		return nil
	}
	net := rt.Faults().FaultyNetwork()
	lhs := RandomSplit(rt, net, pool, int(rt.RandomRange(1, uint64(len(pool)))))
	rt.Logger().Infof("Split %v from the rest", lhs)
	return net.Heal
}

// IsolateOne cuts a random host off from the rest of pool.
func IsolateOne(rt *server.Runtime, pool []string) func() {
	victim := pool[rt.RandomNumber(uint64(len(pool)))]
	rt.Logger().Infof("Isolate %s", victim)
	net := rt.Faults().FaultyNetwork()
	Isolate(net, pool, victim)
	return net.Heal
}

// CrashOne crashes a random live host and relaunches it on undo.
func CrashOne(rt *server.Runtime, pool []string) func() {
	victim := RandomServer(rt, pool)
	if !victim.IsAlive() {
		return nil
	}
	rt.Logger().Infof("Crash %s", victim.Name())
	victim.Crash()
	return func() {
		if !victim.IsAlive() {
			rt.Logger().Infof("Relaunch %s", victim.Name())
			victim.Launch()
		}
	}
}

// PauseOne freezes a random host until undo.
func PauseOne(rt *server.Runtime, pool []string) func() {
	victim := RandomServer(rt, pool)
	rt.Logger().Infof("Pause %s", victim.Name())
	victim.Pause()
	return victim.Resume
}

// AdjustClock redraws the wall clock offset of a random host.
func AdjustClock(rt *server.Runtime, pool []string) func() {
	victim := RandomServer(rt, pool)
	rt.Logger().Infof("Adjust wall clock of %s", victim.Name())
	victim.AdjustWallClock()
	return nil
}

// CorruptOne damages a random file of a random host.
func CorruptOne(rt *server.Runtime, pool []string) func() {
	victim := RandomServer(rt, pool)
	files := victim.ListFiles("")
	if len(files) == 0 {
		return nil
	}
	path := files[rt.RandomNumber(uint64(len(files)))]
	rt.Logger().Infof("Corrupt %s on %s", path, victim.Name())
	victim.CorruptFile(path)
	return nil
}

// Mixed picks one of faults at random on every round.
func Mixed(faults ...Fault) Fault {
	if len(faults) == 0 {
		panic("adversary: Mixed() without faults")
	}
	return func(rt *server.Runtime, pool []string) func() {
		return faults[rt.RandomNumber(uint64(len(faults)))](rt, pool)
	}
}

var builtins = map[string]Fault{
	"star":    Star,
	"split":   Split,
	"isolate": IsolateOne,
	"crash":   CrashOne,
	"pause":   PauseOne,
	"clock":   AdjustClock,
	"corrupt": CorruptOne,
}

// FaultNames lists the built-in faults in sorted order.
func FaultNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FaultByName returns a built-in fault.
func FaultByName(name string) (Fault, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown fault %q, expected one of %v", name, FaultNames())
	}
	return f, nil
}

// IsFault reports whether name is a built-in fault.
func IsFault(name string) bool {
	_, ok := builtins[name]
	return ok
}
