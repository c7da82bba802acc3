package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/db"
	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// TTInterval is a TrueTime reading: the true time lies within [Earliest, Latest].
type TTInterval struct {
	Earliest core.TimePoint
	Latest   core.TimePoint
}

// Runtime is the handle a program uses to reach its server. A new Runtime is
// created on every launch; the previous one dies with the crash.
//
// Every blocking method must be called from a fiber of this server.
type Runtime struct {
	s      *Server
	fibers *process.Fibers
	disk   *Disk
	db     *db.DB
	log    *logrus.Entry
}

var _ process.Parker = (*Runtime)(nil)

func newRuntime(s *Server) *Runtime {
	rt := &Runtime{
		s:      s,
		fibers: s.fibers,
		log:    s.world.Logger().WithField("component", "User"),
	}
	rt.disk = &Disk{rt: rt}
	return rt
}

// Identity and discovery

func (rt *Runtime) HostName() string { return rt.s.cfg.Host }
func (rt *Runtime) ServerID() int    { return rt.s.cfg.ID }
func (rt *Runtime) Pool() string     { return rt.s.cfg.Pool }
func (rt *Runtime) Config() Config   { return rt.s.cfg }

// ListPool returns the hosts of the named pool in registration order.
func (rt *Runtime) ListPool(name string) []string {
	return rt.s.world.ListPool(name)
}

// Time

// Now reads the server's drifting monotonic clock.
func (rt *Runtime) Now() core.TimePoint {
	return rt.s.mono.Now()
}

// WallNow reads the server's wall clock.
func (rt *Runtime) WallNow() core.TimePoint {
	return rt.s.wall.Now()
}

// TrueTime returns an interval guaranteed to contain the world time.
func (rt *Runtime) TrueTime() TTInterval {
	now := rt.s.world.Now()
	u := core.TimePoint(rt.s.model.TrueTimeUncertainty())
	earliest := core.TimePoint(0)
	if now > u {
		earliest = now - u
	}
	return TTInterval{Earliest: earliest, Latest: now + u}
}

// Sleep parks the current fiber for d jiffies of local (drifting) time.
func (rt *Runtime) Sleep(d core.Jiffies) {
	rt.fibers.SleepFor(rt.s.mono.SleepOrTimeout(d))
}

// After returns a future completed d jiffies of local time from now.
func (rt *Runtime) After(d core.Jiffies) *process.Future[struct{}] {
	f, p := process.NewContract[struct{}]()
	rt.s.sched.After(rt.s.mono.SleepOrTimeout(d), func() { p.SetValue(struct{}{}) })
	return f
}

// WithTimeout fails f with process.ErrTimeout after d jiffies of local time.
func WithTimeout[T any](rt *Runtime, f *process.Future[T], d core.Jiffies) *process.Future[T] {
	return process.WithTimeout(rt.s.sched, f, rt.s.mono.SleepOrTimeout(d))
}

// ThreadPause stalls the current fiber as if the OS descheduled it.
func (rt *Runtime) ThreadPause() {
	rt.fibers.SleepFor(rt.s.model.ThreadPause())
}

// Fibers

// Spawn starts fn in a new fiber of this server.
func (rt *Runtime) Spawn(name string, fn func()) *process.Fiber {
	return rt.fibers.Spawn(name, fn)
}

// Suspend implements process.Parker for the current fiber.
func (rt *Runtime) Suspend(register func(wake func())) {
	rt.fibers.Suspend(register)
}

func (rt *Runtime) Yield() {
	rt.fibers.Yield()
}

// Scheduler returns the server task queue for callbacks that do not need a fiber.
func (rt *Runtime) Scheduler() *process.Scheduler {
	return rt.s.sched
}

// Memory returns the server arena.
func (rt *Runtime) Memory() *process.Memory {
	return rt.s.mem
}

// Randomness

// RandomNumber returns a value in [0, bound). Panics if bound is zero.
func (rt *Runtime) RandomNumber(bound uint64) uint64 {
	return rt.s.world.Random().Below(bound)
}

// RandomRange returns a value in [lo, hi).
func (rt *Runtime) RandomRange(lo, hi uint64) uint64 {
	return rt.s.world.Random().Between(lo, hi)
}

// GenerateGuid returns an identifier unique within the simulation.
func (rt *Runtime) GenerateGuid() string {
	return rt.s.world.GenerateGuid()
}

// Storage

// FS returns the latency-charged filesystem.
func (rt *Runtime) FS() *Disk {
	return rt.disk
}

// Database opens (on first use) the database stored under the configured
// path. It replays the WAL left by previous launches.
func (rt *Runtime) Database() (*db.DB, error) {
	if rt.db != nil {
		return rt.db, nil
	}
	d, err := db.Open(rt.s.cfg.DBPath, rt.disk, rt.s.model, rt, rt.s.world.Logger().WithField("component", "Database"))
	if err != nil {
		return nil, fmt.Errorf("opening database on %s: %w", rt.s.cfg.Host, err)
	}
	rt.db = d
	return d, nil
}

// Network

// Backoff is the retry schedule of the current time model.
func (rt *Runtime) Backoff() timemodel.Backoff {
	return rt.s.world.TimeModel().Backoff()
}

func (rt *Runtime) Transport() *network.Transport {
	return rt.s.transport
}

// Terminal and logging

// Println appends a line to the server's captured stdout.
func (rt *Runtime) Println(args ...any) {
	rt.s.println(fmt.Sprint(args...))
}

// Printf appends a formatted line to the server's captured stdout.
func (rt *Runtime) Printf(format string, args ...any) {
	rt.s.println(fmt.Sprintf(format, args...))
}

// Logger returns the program-level logger.
func (rt *Runtime) Logger() *logrus.Entry {
	return rt.log
}

// ComponentLogger returns a logger tagged with a library component name.
func (rt *Runtime) ComponentLogger(component string) *logrus.Entry {
	return rt.s.world.Logger().WithField("component", component)
}

// Globals

func (rt *Runtime) GetGlobal(key string) (any, bool) {
	return rt.s.world.GetGlobal(key)
}

func (rt *Runtime) SetGlobal(key string, v any) {
	rt.s.world.SetGlobal(key, v)
}

func (rt *Runtime) IncrementCounter(name string) int64 {
	return rt.s.world.IncrementCounter(name)
}

// Faults gives adversary programs access to fault injection.
func (rt *Runtime) Faults() Faults {
	return rt.s.world.Faults()
}
