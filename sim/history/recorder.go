package history

import (
	"fmt"
	"slices"

	"github.com/matrix-sim/matrix/sim/core"
)

// Cookie identifies a running call.
type Cookie uint64

type runningCall struct {
	method    string
	arguments []byte
	start     core.TimePoint
	labels    []string
}

// Recorder collects calls while the simulation runs. It reads the World clock
// through now, so start and end times are global virtual time.
type Recorder struct {
	now       func() core.TimePoint
	nextID    Cookie
	running   map[Cookie]*runningCall
	calls     History
	completed int
	finalized bool
}

func NewRecorder(now func() core.TimePoint) *Recorder {
	return &Recorder{now: now, running: make(map[Cookie]*runningCall)}
}

func (r *Recorder) NumCompletedCalls() int {
	return r.completed
}

func (r *Recorder) CallStarted(method string, arguments []byte) Cookie {
	r.checkOpen()
	r.nextID++
	id := r.nextID
	r.running[id] = &runningCall{
		method:    method,
		arguments: append([]byte(nil), arguments...),
		start:     r.now(),
	}
	return id
}

func (r *Recorder) AddLabel(id Cookie, label string) {
	c := r.get(id)
	c.labels = append(c.labels, label)
}

func (r *Recorder) CallCompleted(id Cookie, result []byte) {
	c := r.take(id)
	r.calls = append(r.calls, Call{
		Method:    c.method,
		Arguments: c.arguments,
		Result:    append([]byte(nil), result...),
		StartTime: c.start,
		EndTime:   r.now(),
		Outcome:   Completed,
		Labels:    c.labels,
	})
	r.completed++
}

func (r *Recorder) CallLost(id Cookie) {
	r.calls = append(r.calls, lost(r.take(id)))
}

// RemoveCall forgets a call that certainly had no effect.
func (r *Recorder) RemoveCall(id Cookie) {
	r.take(id)
}

// Finalize turns every still running call into a lost one and freezes the
// history. Calls lost this way follow the others in start order.
func (r *Recorder) Finalize() {
	r.checkOpen()
	ids := make([]Cookie, 0, len(r.running))
	for id := range r.running {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		r.calls = append(r.calls, lost(r.running[id]))
	}
	r.running = nil
	r.finalized = true
}

func (r *Recorder) IsFinalized() bool {
	return r.finalized
}

// History returns the recorded calls. Panics before Finalize.
func (r *Recorder) History() History {
	if !r.finalized {
		panic("history is not finalized")
	}
	return r.calls
}

// Running returns the number of calls in flight.
func (r *Recorder) Running() int {
	return len(r.running)
}

func lost(c *runningCall) Call {
	return Call{
		Method:    c.method,
		Arguments: c.arguments,
		StartTime: c.start,
		EndTime:   core.Infinity,
		Outcome:   Lost,
		Labels:    c.labels,
	}
}

func (r *Recorder) checkOpen() {
	if r.finalized {
		panic("history recorder already finalized")
	}
}

func (r *Recorder) get(id Cookie) *runningCall {
	r.checkOpen()
	c, ok := r.running[id]
	if !ok {
		panic(fmt.Sprintf("unknown call cookie %d", id))
	}
	return c
}

func (r *Recorder) take(id Cookie) *runningCall {
	c := r.get(id)
	delete(r.running, id)
	return c
}
