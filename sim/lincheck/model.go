// Package lincheck decides whether a recorded history is linearizable with
// respect to a sequential model.
package lincheck

import (
	"github.com/matrix-sim/matrix/sim/history"
)

// Model is the sequential object a history is checked against. States must be
// comparable: the checker memoizes visited (placed calls, state) pairs.
type Model[S comparable] interface {
	Init() S
	// Apply executes c on state. ok reports whether the result recorded in c
	// is what the model produces; it is ignored for lost calls.
	Apply(state S, c history.Call) (next S, ok bool)
	// IsMutation reports whether c may change the state. Calls that are not
	// mutations and did not complete carry no information.
	IsMutation(c history.Call) bool
	// Decompose splits a history into independently checkable parts.
	Decompose(h history.History) []history.History
}

// Describer is implemented by models that render calls for people.
type Describer interface {
	Describe(c history.Call) string
}
