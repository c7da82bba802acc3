package core

import (
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run.
// Two worlds with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical digests.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

const (
	// SubsystemWorld is the stream every in-simulation draw comes from.
	// It uses the master seed directly.
	SubsystemWorld = "world"

	// SubsystemParams is used by scenario builders to randomize cluster
	// parameters without perturbing the world stream.
	SubsystemParams = "params"

	// SubsystemSeeds derives the per-run seeds of a multi-run sweep.
	SubsystemSeeds = "seeds"
)

// PartitionedRNG provides deterministic, isolated random streams per subsystem.
//
// Derivation formula:
//   - For SubsystemWorld: uses the master seed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*RandomSource
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*RandomSource),
	}
}

// ForSubsystem returns the random source of the named subsystem.
// The same name always returns the same instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *RandomSource {
	if src, ok := p.subsystems[name]; ok {
		return src
	}

	derivedSeed := int64(p.key)
	if name != SubsystemWorld {
		derivedSeed ^= fnv1a64(name)
	}

	src := NewRandomSource(derivedSeed)
	p.subsystems[name] = src
	return src
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// RandomSource is a seeded pseudo-random stream that counts its draws.
// The draw count is part of what a determinism check compares.
type RandomSource struct {
	rng   *rand.Rand
	draws uint64
}

// NewRandomSource creates a stream seeded with seed.
func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewSource(seed))}
}

// Next returns the next raw 64-bit value.
func (r *RandomSource) Next() uint64 {
	r.draws++
	return r.rng.Uint64()
}

// Below returns a value in [0, n). Panics if n is zero.
func (r *RandomSource) Below(n uint64) uint64 {
	if n == 0 {
		panic("RandomSource.Below(0)")
	}
	return r.Next() % n
}

// Between returns a value in [lo, hi). Panics if the range is empty.
func (r *RandomSource) Between(lo, hi uint64) uint64 {
	if hi <= lo {
		panic("RandomSource.Between: empty range")
	}
	return lo + r.Below(hi-lo)
}

// Chance returns true with probability 1/n.
func (r *RandomSource) Chance(n uint64) bool {
	return r.Below(n) == 0
}

// Draws returns how many values have been taken from the stream.
func (r *RandomSource) Draws() uint64 {
	return r.draws
}
