package network

import (
	"container/heap"

	"github.com/matrix-sim/matrix/sim/core"
)

type timedFrame struct {
	at    core.TimePoint
	seq   uint64
	frame Frame
}

// frameHeap orders by delivery time, then by insertion sequence.
type frameHeap []timedFrame

func (h frameHeap) Len() int { return len(h) }

func (h frameHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h frameHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frameHeap) Push(x any) { *h = append(*h, x.(timedFrame)) }

func (h *frameHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = timedFrame{}
	*h = old[:n-1]
	return item
}

// Link is a directed channel from Start to End.
type Link struct {
	net    *Network
	start  Host
	end    Host
	frames frameHeap
	seq    uint64
	paused bool
}

func (l *Link) Start() Host { return l.start }
func (l *Link) End() Host   { return l.end }

func (l *Link) IsLoopback() bool {
	return l.start.HostName() == l.end.HostName()
}

func (l *Link) IsPaused() bool {
	return l.paused
}

// Len returns the number of frames in flight.
func (l *Link) Len() int {
	return len(l.frames)
}

// Add sends a packet over the link. Frames are accepted while the link is
// paused; they wait until it resumes.
func (l *Link) Add(p Packet) {
	if p.Type == Data {
		l.net.log.Infof("send packet to %s: %d bytes", Address{l.end.HostName(), p.DestPort}, len(p.Payload))
	}
	now := l.net.env.Now()
	frame := Frame{
		Source:   l.start.HostName(),
		Dest:     l.end.HostName(),
		SendTime: now,
		Packet:   p,
	}
	l.push(frame, l.chooseDeliveryTime(p))
}

func (l *Link) chooseDeliveryTime(p Packet) core.TimePoint {
	now := l.net.env.Now()
	if l.IsLoopback() {
		return now + 1
	}
	return now.Add(l.net.tm.FlightTime(l.start.HostName(), l.end.HostName(), p.Kind()))
}

func (l *Link) push(f Frame, at core.TimePoint) {
	l.seq++
	heap.Push(&l.frames, timedFrame{at: at, seq: l.seq, frame: f})
}

// hasDeliverable reports whether the link can deliver a frame now or later.
func (l *Link) hasDeliverable() bool {
	return !l.paused && len(l.frames) > 0
}

// NextDeliveryTime returns the earliest delivery time, core.Infinity if empty.
func (l *Link) NextDeliveryTime() core.TimePoint {
	if len(l.frames) == 0 {
		return core.Infinity
	}
	return l.frames[0].at
}

// Extract removes the earliest frame. Panics if the link is paused.
func (l *Link) Extract() (Frame, core.TimePoint) {
	if l.paused {
		panic("link is paused")
	}
	tf := heap.Pop(&l.frames).(timedFrame)
	return tf.frame, tf.at
}

// Pause holds every frame on the link. Panics if already paused.
func (l *Link) Pause() {
	if l.paused {
		panic("link already paused")
	}
	l.paused = true
}

// Resume releases held frames; frames due at or before now are delivered one
// jiffy from now.
func (l *Link) Resume() {
	if !l.paused {
		return
	}
	l.paused = false

	now := l.net.env.Now()
	for len(l.frames) > 0 && l.frames[0].at <= now {
		tf := heap.Pop(&l.frames).(timedFrame)
		l.push(tf.frame, now+1)
	}
}

func (l *Link) clear() {
	l.frames = nil
}
