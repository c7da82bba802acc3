package sim

import (
	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/server"
)

// faults is the fault-injection surface handed to adversary programs.
type faults struct {
	w *World
}

func (f faults) FaultyServer(host string) server.FaultyServer {
	return f.w.Server(host)
}

func (f faults) FaultyNetwork() network.FaultyNetwork {
	return f.w.net
}

// Faults gives access to fault injection on any host and the network.
func (w *World) Faults() server.Faults {
	return faults{w: w}
}
