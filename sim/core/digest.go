package core

import "hash/fnv"

const goldenGamma = 0x9e3779b97f4a7c15

// Digest is an order-sensitive hash accumulator. Folding the same values in a
// different order yields a different value.
type Digest struct {
	value uint64
}

// NewDigest starts an accumulator from seed.
func NewDigest(seed uint64) *Digest {
	return &Digest{value: seed}
}

// Eat folds v into the digest.
func (d *Digest) Eat(v uint64) *Digest {
	d.value ^= mix(v) + goldenGamma + (d.value << 6) + (d.value >> 2)
	return d
}

// EatString folds the FNV-1a hash of s into the digest.
func (d *Digest) EatString(s string) *Digest {
	h := fnv.New64a()
	h.Write([]byte(s))
	return d.Eat(h.Sum64())
}

// EatBytes folds the FNV-1a hash of b into the digest.
func (d *Digest) EatBytes(b []byte) *Digest {
	h := fnv.New64a()
	h.Write(b)
	return d.Eat(h.Sum64())
}

// Value returns the current accumulated value.
func (d *Digest) Value() uint64 {
	return d.value
}

// splitmix64 finalizer
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
