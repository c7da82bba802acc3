package lincheck

import (
	"fmt"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/history"
)

// DefaultBudget bounds the search per sub-history.
const DefaultBudget = 777777

// Verdict of a check.
type Verdict int

const (
	Linearizable Verdict = iota
	NotLinearizable
	// Unknown: the search budget ran out before a verdict.
	Unknown
)

func (v Verdict) String() string {
	switch v {
	case Linearizable:
		return "linearizable"
	case NotLinearizable:
		return "not linearizable"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

// Result of a check. SubHistory is the first part that was not proven
// linearizable.
type Result struct {
	Verdict    Verdict
	SubHistory history.History
	Iterations int
}

func (r Result) OK() bool {
	return r.Verdict == Linearizable
}

// Cleanup drops calls that neither completed nor could change the state.
func Cleanup[S comparable](m Model[S], h history.History) history.History {
	var out history.History
	for _, c := range h {
		if !c.IsCompleted() && !m.IsMutation(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Check runs CheckWithBudget with DefaultBudget.
func Check[S comparable](m Model[S], h history.History) Result {
	return CheckWithBudget(m, h, DefaultBudget)
}

// CheckWithBudget cleans h, decomposes it and searches each part for a
// legal linearization, visiting at most budget search nodes per part.
func CheckWithBudget[S comparable](m Model[S], h history.History, budget int) Result {
	total := 0
	for _, sub := range m.Decompose(Cleanup(m, h)) {
		v, iters := searchLinearization(m, sub, budget)
		total += iters
		if v != Linearizable {
			return Result{Verdict: v, SubHistory: sub, Iterations: total}
		}
	}
	return Result{Verdict: Linearizable, Iterations: total}
}

type memoKey[S comparable] struct {
	placed string
	state  S
}

type search[S comparable] struct {
	m      Model[S]
	calls  history.History
	placed []byte
	budget int
	iters  int
	seen   map[memoKey[S]]struct{}
}

func searchLinearization[S comparable](m Model[S], calls history.History, budget int) (Verdict, int) {
	s := &search[S]{
		m:      m,
		calls:  calls,
		placed: make([]byte, len(calls)),
		budget: budget,
		seen:   make(map[memoKey[S]]struct{}),
	}
	ok, exhausted := s.run(m.Init(), calls.Completed())
	switch {
	case ok:
		return Linearizable, s.iters
	case exhausted:
		return Unknown, s.iters
	default:
		return NotLinearizable, s.iters
	}
}

// run places one more call. Lost calls may stay unplaced: they might never
// have taken effect.
func (s *search[S]) run(state S, pending int) (ok, exhausted bool) {
	if pending == 0 {
		return true, false
	}
	s.iters++
	if s.iters > s.budget {
		return false, true
	}
	key := memoKey[S]{placed: string(s.placed), state: state}
	if _, dup := s.seen[key]; dup {
		return false, false
	}
	s.seen[key] = struct{}{}

	// A call may go next only if no unplaced call completed before it started.
	frontier := s.minPendingEnd()
	for i, c := range s.calls {
		if s.placed[i] != 0 || c.StartTime > frontier {
			continue
		}
		next, legal := s.m.Apply(state, c)
		if c.IsCompleted() && !legal {
			continue
		}
		left := pending
		if c.IsCompleted() {
			left--
		}
		s.placed[i] = 1
		ok, exhausted = s.run(next, left)
		s.placed[i] = 0
		if ok || exhausted {
			return ok, exhausted
		}
	}
	return false, false
}

func (s *search[S]) minPendingEnd() core.TimePoint {
	end := core.Infinity
	for i, c := range s.calls {
		if s.placed[i] == 0 && c.IsCompleted() {
			end = core.MinTime(end, c.EndTime)
		}
	}
	return end
}
