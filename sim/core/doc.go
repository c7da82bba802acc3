// Package core holds the primitives every other simulator package builds on:
// virtual time, the seeded random source, the order-sensitive digest and the
// Actor contract driven by the World loop.
//
// This package has no dependencies on other sim/ packages.
package core
