package network

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// Host is a network endpoint able to receive packets. out is the link back
// to the sender.
type Host interface {
	HostName() string
	HandlePacket(p Packet, out *Link)
}

// FaultyNetwork is the fault-injection surface adversaries use.
type FaultyNetwork interface {
	Hosts() []string
	PauseLink(from, to string)
	ResumeLink(from, to string)
	// Split pauses every link crossing between lhs and the remaining hosts.
	Split(lhs []string)
	// Isolate cuts host off from every other host.
	Isolate(host string)
	// Heal resumes every paused link.
	Heal()
}

// Network is the actor delivering frames between hosts.
type Network struct {
	env  core.Env
	tm   timemodel.TimeModel
	log  *logrus.Entry
	ping bool

	hosts  []Host
	byName map[string]int
	links  []*Link // links[i*len(hosts)+j] goes from host i to host j

	started  bool
	shutdown bool
	digest   *core.Digest
	frames   []DeliveredFrame
}

var _ core.Actor = (*Network)(nil)
var _ FaultyNetwork = (*Network)(nil)

// New creates a network without hosts.
func New(env core.Env) *Network {
	return &Network{
		env:    env,
		log:    env.Logger().WithField("component", "Network"),
		byName: make(map[string]int),
		digest: core.NewDigest(0),
	}
}

// SetTimeModel installs the model choosing flight times. Must precede Start.
func (n *Network) SetTimeModel(tm timemodel.TimeModel) {
	n.tm = tm
}

// SetPingOnConnect makes new client sockets send a ping, so that a crashed
// or rebooted peer answers with a reset. Enabled when an adversary exists.
func (n *Network) SetPingOnConnect(enabled bool) {
	n.ping = enabled
}

// AddHost registers h. Panics after Start or on a duplicate name.
func (n *Network) AddHost(h Host) {
	if n.started {
		panic("Network.AddHost() after Start()")
	}
	name := h.HostName()
	if _, dup := n.byName[name]; dup {
		panic(fmt.Sprintf("duplicate host %q", name))
	}
	n.byName[name] = len(n.hosts)
	n.hosts = append(n.hosts, h)
}

// Hosts lists host names in registration order.
func (n *Network) Hosts() []string {
	names := make([]string, len(n.hosts))
	for i, h := range n.hosts {
		names[i] = h.HostName()
	}
	return names
}

func (n *Network) Name() string {
	return "Network"
}

// Start builds the full mesh, loopback links included.
func (n *Network) Start() {
	if n.started {
		panic("Network.Start() called more than once")
	}
	if n.tm == nil {
		panic("Network.Start() without time model")
	}
	n.started = true
	size := len(n.hosts)
	n.links = make([]*Link, 0, size*size)
	for _, from := range n.hosts {
		for _, to := range n.hosts {
			n.links = append(n.links, &Link{net: n, start: from, end: to})
		}
	}
	n.log.Debugf("built %d links between %d hosts", len(n.links), size)
}

// GetLink returns the link from one host to another. Panics on unknown hosts.
func (n *Network) GetLink(from, to string) *Link {
	return n.links[n.index(from)*len(n.hosts)+n.index(to)]
}

func (n *Network) index(host string) int {
	i, ok := n.byName[host]
	if !ok {
		panic(fmt.Sprintf("unknown host %q", host))
	}
	return i
}

// nextLink returns the link holding the earliest deliverable frame; ties go
// to the lowest link index.
func (n *Network) nextLink() *Link {
	var best *Link
	bestTime := core.Infinity
	for _, l := range n.links {
		if !l.hasDeliverable() {
			continue
		}
		if t := l.NextDeliveryTime(); t < bestTime {
			best, bestTime = l, t
		}
	}
	return best
}

func (n *Network) IsRunnable() bool {
	return !n.shutdown && n.nextLink() != nil
}

func (n *Network) NextStepTime() core.TimePoint {
	if l := n.nextLink(); l != nil {
		return l.NextDeliveryTime()
	}
	return core.Infinity
}

// Step delivers exactly one frame.
func (n *Network) Step() {
	link := n.nextLink()
	if link == nil {
		panic("Network.Step() with nothing to deliver")
	}
	frame, at := link.Extract()

	n.digest.Eat(uint64(at)).EatString(frame.Source).EatString(frame.Dest).
		Eat(uint64(frame.Packet.Type)).Eat(uint64(len(frame.Packet.Payload)))
	n.frames = append(n.frames, DeliveredFrame{Frame: frame, DeliveryTime: at})

	dest := link.End()
	out := n.GetLink(frame.Dest, frame.Source)
	if a, ok := dest.(core.Actor); ok {
		leave := n.env.Actors().Enter(a)
		defer leave()
	}
	dest.HandlePacket(frame.Packet, out)
}

// Shutdown drops every in-flight frame.
func (n *Network) Shutdown() {
	for _, l := range n.links {
		l.clear()
	}
	n.shutdown = true
}

// Digest folds every delivered frame.
func (n *Network) Digest() uint64 {
	return n.digest.Value()
}

// InFlight returns the number of frames on all links.
func (n *Network) InFlight() int {
	total := 0
	for _, l := range n.links {
		total += l.Len()
	}
	return total
}

// Faults

func (n *Network) PauseLink(from, to string) {
	n.log.Infof("pause link %s -> %s", from, to)
	n.GetLink(from, to).Pause()
}

func (n *Network) ResumeLink(from, to string) {
	n.log.Infof("resume link %s -> %s", from, to)
	n.GetLink(from, to).Resume()
}

func (n *Network) Split(lhs []string) {
	left := make(map[string]bool, len(lhs))
	for _, h := range lhs {
		n.index(h)
		left[h] = true
	}
	n.log.Infof("split %v from the rest", lhs)
	for _, l := range n.links {
		if left[l.start.HostName()] != left[l.end.HostName()] && !l.paused {
			l.Pause()
		}
	}
}

func (n *Network) Isolate(host string) {
	n.Split([]string{host})
}

func (n *Network) Heal() {
	n.log.Info("heal")
	for _, l := range n.links {
		l.Resume()
	}
}

// Frame listener

// FrameCount returns the number of frames delivered so far.
func (n *Network) FrameCount() int {
	return len(n.frames)
}

// Frame returns the i-th delivered frame.
func (n *Network) Frame(i int) Frame {
	return n.frames[i].Frame
}

// Frames returns every delivered frame with its delivery time.
func (n *Network) Frames() []DeliveredFrame {
	return n.frames
}
