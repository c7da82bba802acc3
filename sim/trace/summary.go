package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/network"
)

// Summary aggregates an event log and the delivered frames of one run.
type Summary struct {
	Events       int
	Warnings     int // warning level and above
	ByActor      map[string]int
	Frames       int
	PayloadBytes int
	ByType       map[network.PacketType]int
	// ByLink counts frames per "src -> dst".
	ByLink map[string]int
}

// Summarize is safe for nil inputs (returns zero-value fields).
func Summarize(log EventLog, frames []network.DeliveredFrame) *Summary {
	s := &Summary{
		ByActor: make(map[string]int),
		ByType:  make(map[network.PacketType]int),
		ByLink:  make(map[string]int),
	}
	s.Events = len(log)
	for _, e := range log {
		s.ByActor[e.Actor]++
		if e.Level <= logrus.WarnLevel {
			s.Warnings++
		}
	}
	s.Frames = len(frames)
	for _, f := range frames {
		s.PayloadBytes += len(f.Packet.Payload)
		s.ByType[f.Packet.Type]++
		s.ByLink[f.Source+" -> "+f.Dest]++
	}
	return s
}
