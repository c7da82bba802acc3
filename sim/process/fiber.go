package process

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
)

// FiberID identifies a fiber within one server launch.
type FiberID uint64

// killSentinel unwinds a killed fiber's stack; recovered at the fiber's top.
var killSentinel = new(struct{ name string })

type fiberSignal struct {
	exited   bool
	panicked any
	stack    []byte
}

// Fiber is a cooperatively scheduled thread of a server program.
type Fiber struct {
	id     FiberID
	name   string
	resume chan struct{}
	park   chan fiberSignal

	killed  bool
	done    bool
	parkGen uint64
	wokeGen uint64
}

func (f *Fiber) ID() FiberID  { return f.id }
func (f *Fiber) Name() string { return f.name }

// Fibers owns the fibers of one server launch: id generation, the pool of
// reusable control blocks and the hand-off protocol with the scheduler.
//
// Thread-safety: NOT thread-safe. Only one goroutine (the World loop or the
// single running fiber) touches it at a time.
type Fibers struct {
	sched   *Scheduler
	mem     *Memory
	log     *logrus.Entry
	nextID  FiberID
	pool    []*Fiber
	live    []*Fiber
	current *Fiber
}

// NewFibers creates a manager scheduling on sched and charging stacks to mem.
func NewFibers(sched *Scheduler, mem *Memory, log *logrus.Entry) *Fibers {
	return &Fibers{sched: sched, mem: mem, log: log}
}

// Spawn creates a fiber running fn; it starts at the current time, after
// tasks already due.
func (m *Fibers) Spawn(name string, fn func()) *Fiber {
	f := m.acquire()
	m.nextID++
	f.id = m.nextID
	f.name = name
	m.live = append(m.live, f)

	go m.body(f, fn)
	m.sched.ScheduleAsap(TaskFunc(func() { m.run(f) }))

	m.log.Debugf("spawned fiber %d (%s)", f.id, name)
	return f
}

// Current returns the running fiber, nil outside fiber context.
func (m *Fibers) Current() *Fiber {
	return m.current
}

// Live returns the number of fibers that have not exited.
func (m *Fibers) Live() int {
	return len(m.live)
}

// Suspend parks the running fiber. register receives the wake func that
// reschedules it; wake may be called any number of times, from anywhere in
// the simulation, and only the first call counts.
func (m *Fibers) Suspend(register func(wake func())) {
	f := m.current
	if f == nil {
		panic("Fibers.Suspend() outside fiber context")
	}
	if f.killed {
		panic(killSentinel)
	}
	f.parkGen++
	gen := f.parkGen
	register(func() { m.wake(f, gen) })

	f.park <- fiberSignal{}
	<-f.resume
	if f.killed {
		panic(killSentinel)
	}
}

// Yield lets every other task due now run before the fiber continues.
func (m *Fibers) Yield() {
	m.Suspend(func(wake func()) { wake() })
}

// SleepFor parks the running fiber for d jiffies of world time.
func (m *Fibers) SleepFor(d core.Jiffies) {
	m.Suspend(func(wake func()) { m.sched.After(d, wake) })
}

// KillAll unwinds every live fiber. Must be called from outside this
// manager's fibers.
func (m *Fibers) KillAll() {
	if m.current != nil {
		panic("Fibers.KillAll() from a fiber it would kill")
	}
	live := m.live
	m.live = nil
	for _, f := range live {
		f.killed = true
		f.resume <- struct{}{}
		<-f.park
		f.done = true
	}
	m.pool = nil
	if len(live) > 0 {
		m.log.Debugf("killed %d fibers", len(live))
	}
}

func (m *Fibers) acquire() *Fiber {
	if n := len(m.pool); n > 0 {
		f := m.pool[n-1]
		m.pool = m.pool[:n-1]
		return f
	}
	m.mem.Charge(FiberStackSize)
	return &Fiber{
		resume: make(chan struct{}),
		park:   make(chan fiberSignal),
	}
}

func (m *Fibers) release(f *Fiber) {
	for i, l := range m.live {
		if l == f {
			m.live = append(m.live[:i], m.live[i+1:]...)
			break
		}
	}
	f.done = true
	// The control block is reused; the old *Fiber stays marked done for
	// any stale wake funcs still holding it.
	m.pool = append(m.pool, &Fiber{resume: f.resume, park: f.park})
}

func (m *Fibers) body(f *Fiber, fn func()) {
	sig := fiberSignal{exited: true}
	defer func() {
		if r := recover(); r != nil && r != killSentinel {
			sig.panicked = r
			sig.stack = debug.Stack()
		}
		f.park <- sig
	}()
	<-f.resume
	if f.killed {
		return
	}
	fn()
}

// run hands control to f and blocks until it parks or exits.
func (m *Fibers) run(f *Fiber) {
	if f.done {
		return
	}
	prev := m.current
	m.current = f
	f.resume <- struct{}{}
	sig := <-f.park
	m.current = prev

	if !sig.exited {
		return
	}
	m.release(f)
	if sig.panicked != nil {
		m.log.Errorf("fiber %d (%s) panicked: %v\n%s", f.id, f.name, sig.panicked, sig.stack)
		panic(sig.panicked)
	}
	m.log.Debugf("fiber %d (%s) completed", f.id, f.name)
}

func (m *Fibers) wake(f *Fiber, gen uint64) {
	if f.done || f.parkGen != gen || f.wokeGen == gen {
		return
	}
	f.wokeGen = gen
	m.sched.ScheduleAsap(TaskFunc(func() { m.run(f) }))
}

func (f *Fiber) String() string {
	return fmt.Sprintf("fiber-%d(%s)", f.id, f.name)
}
