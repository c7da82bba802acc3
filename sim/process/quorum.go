package process

import "fmt"

// Majority returns the smallest majority of n participants.
func Majority(n int) int {
	return n/2 + 1
}

// Quorum completes with the first threshold successful values, in completion
// order, or fails once so many inputs failed that threshold is unreachable.
// Panics if threshold is negative or exceeds len(fs).
func Quorum[T any](fs []*Future[T], threshold int) *Future[[]T] {
	if threshold < 0 || threshold > len(fs) {
		panic(fmt.Sprintf("Quorum: threshold %d out of range [0, %d]", threshold, len(fs)))
	}
	if threshold == 0 {
		return Ready([]T{})
	}

	out, p := NewContract[[]T]()
	values := make([]T, 0, threshold)
	failures := 0
	for _, f := range fs {
		f.Subscribe(func() {
			if p.IsFulfilled() {
				return
			}
			if f.err != nil {
				failures++
				if failures > len(fs)-threshold {
					p.SetError(fmt.Errorf("quorum of %d/%d unreachable: %w", threshold, len(fs), f.err))
				}
				return
			}
			values = append(values, f.value)
			if len(values) == threshold {
				p.SetValue(values)
			}
		})
	}
	return out
}

// All waits for every future; fails on the first error.
func All[T any](fs []*Future[T]) *Future[[]T] {
	return Quorum(fs, len(fs))
}
