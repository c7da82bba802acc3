package core

import "math"

// TimePoint is a point on the global virtual clock, measured in jiffies.
type TimePoint int64

// Jiffies is a span of virtual time.
type Jiffies int64

// Infinity is later than any reachable TimePoint.
const Infinity = TimePoint(math.MaxInt64)

// Add returns t shifted forward by d.
func (t TimePoint) Add(d Jiffies) TimePoint {
	return t + TimePoint(d)
}

// Sub returns the span from u to t.
func (t TimePoint) Sub(u TimePoint) Jiffies {
	return Jiffies(t - u)
}

// Before reports whether t is strictly earlier than u.
func (t TimePoint) Before(u TimePoint) bool {
	return t < u
}

// MaxTime returns the later of two time points.
func MaxTime(a, b TimePoint) TimePoint {
	if a > b {
		return a
	}
	return b
}

// MinTime returns the earlier of two time points.
func MinTime(a, b TimePoint) TimePoint {
	if a < b {
		return a
	}
	return b
}
