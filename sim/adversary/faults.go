// Package adversary holds fault-injection programs for the simulated cluster.
//
// An adversary is an ordinary server program registered with
// World.AddAdversary; it reaches the network and the other servers through
// rt.Faults(). Faults here are built to be undone by the next round, so
// network faults always assume every link is healthy when they start.
package adversary

import (
	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/server"
)

// MakeStar pauses every link between members of pool except those touching
// pool[center].
func MakeStar(net network.FaultyNetwork, pool []string, center int) {
	for i, from := range pool {
		for j, to := range pool {
			if i == j || i == center || j == center {
				continue
			}
			net.PauseLink(from, to)
		}
	}
}

// Isolate pauses the links between victim and the rest of pool, both ways.
// Hosts outside pool still reach the victim.
func Isolate(net network.FaultyNetwork, pool []string, victim string) {
	for _, host := range pool {
		if host == victim {
			continue
		}
		net.PauseLink(host, victim)
		net.PauseLink(victim, host)
	}
}

// RandomSplit partitions pool into a random subset of lhsSize hosts and the
// rest, and pauses every link crossing the cut. It returns the subset.
func RandomSplit(rt *server.Runtime, net network.FaultyNetwork, pool []string, lhsSize int) []string {
	hosts := append([]string(nil), pool...)
	for i := 0; i < lhsSize; i++ {
		j := i + int(rt.RandomNumber(uint64(len(hosts)-i)))
		hosts[i], hosts[j] = hosts[j], hosts[i]
	}
	lhs := hosts[:lhsSize]

	left := make(map[string]bool, lhsSize)
	for _, h := range lhs {
		left[h] = true
	}
	for _, from := range pool {
		for _, to := range pool {
			if left[from] != left[to] {
				net.PauseLink(from, to)
			}
		}
	}
	return lhs
}

// RandomServer picks a uniformly random host of pool.
func RandomServer(rt *server.Runtime, pool []string) server.FaultyServer {
	return rt.Faults().FaultyServer(pool[rt.RandomNumber(uint64(len(pool)))])
}

// RandomPause sleeps for a random delay in [lo, hi).
func RandomPause(rt *server.Runtime, lo, hi core.Jiffies) {
	rt.Sleep(randomDelay(rt, lo, hi))
}

func randomDelay(rt *server.Runtime, lo, hi core.Jiffies) core.Jiffies {
	if hi <= lo {
		return lo
	}
	return core.Jiffies(rt.RandomRange(uint64(lo), uint64(hi)))
}
