// Package timemodel defines how long things take inside a simulation: packet
// flight times, clock drift and offsets, disk and cache latencies. Every
// nondeterministic choice draws from the World's single random source.
package timemodel

import (
	"fmt"
	"sort"

	"github.com/matrix-sim/matrix/sim/core"
)

// PacketKind tells a model whether a packet carries user data or is a
// service packet (reset, ping).
type PacketKind int

const (
	PacketData PacketKind = iota
	PacketService
)

// Backoff parametrizes exponential retry delays.
type Backoff struct {
	Init   core.Jiffies
	Max    core.Jiffies
	Factor int64
}

// Next returns the delay following d, capped at Max.
func (b Backoff) Next(d core.Jiffies) core.Jiffies {
	next := d * core.Jiffies(b.Factor)
	if next > b.Max {
		return b.Max
	}
	return next
}

// DefaultRTT is returned by models without an opinion on round-trip time.
const DefaultRTT core.Jiffies = 1234

// TimeModel is the per-run latency model. Exactly one is active per World.
type TimeModel interface {
	// Initialize binds the model to the World's random source. Called once by
	// World.Start before any other method.
	Initialize(rng *core.RandomSource)
	GlobalStartTime() core.TimePoint
	NewServerModel(host string) ServerTimeModel
	EstimateRTT() core.Jiffies
	FlightTime(src, dst string, kind PacketKind) core.Jiffies
	Backoff() Backoff
}

// ServerTimeModel is derived per server every time it is started.
type ServerTimeModel interface {
	// InitClockDrift returns the monotonic clock drift in percent.
	InitClockDrift() int64
	ResetMonotonicClock() core.Jiffies
	InitWallClockOffset() core.Jiffies
	TrueTimeUncertainty() core.Jiffies
	DiskWrite(bytes int) core.Jiffies
	DiskRead(bytes int) core.Jiffies
	GetCacheMiss() bool
	IteratorCacheMiss() bool
	ThreadPause() core.Jiffies
}

// Factory builds a fresh, uninitialized TimeModel.
type Factory func() TimeModel

var registry = map[string]Factory{}

// Register makes a model constructible by name. Panics on duplicates.
func Register(name string, f Factory) {
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("time model %q registered twice", name))
	}
	registry[name] = f
}

// New builds the model registered under name.
func New(name string) (TimeModel, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown time model %q (valid: %v)", name, Names())
	}
	return f(), nil
}

// IsValid reports whether name is a registered model.
func IsValid(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names lists registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("crazy", func() TimeModel { return NewCrazy() })
	Register("calm", func() TimeModel { return NewCalm() })
}
