package network

import (
	"fmt"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// PacketType distinguishes user data from service packets.
type PacketType uint8

const (
	Data PacketType = iota
	Reset
	Ping
)

func (t PacketType) String() string {
	switch t {
	case Data:
		return "data"
	case Reset:
		return "reset"
	case Ping:
		return "ping"
	default:
		return fmt.Sprintf("PacketType(%d)", uint8(t))
	}
}

// Port is a transport endpoint number on a host.
type Port uint16

// Timestamp stamps endpoints and the packets sent from them. A packet older
// than the endpoint it reaches belongs to a previous incarnation.
type Timestamp uint64

// Address names an endpoint.
type Address struct {
	Host string
	Port Port
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type Header struct {
	Type       PacketType
	SourcePort Port
	DestPort   Port
	Timestamp  Timestamp
}

type Packet struct {
	Header
	Payload []byte
}

// Kind classifies the packet for the time model.
func (p Packet) Kind() timemodel.PacketKind {
	if p.Type == Data {
		return timemodel.PacketData
	}
	return timemodel.PacketService
}

// Frame is a packet in flight between two hosts. Immutable once created.
type Frame struct {
	Source   string
	Dest     string
	SendTime core.TimePoint
	Packet   Packet
}

// DeliveredFrame is a frame together with the time it reached its destination.
type DeliveredFrame struct {
	Frame
	DeliveryTime core.TimePoint
}
