package sim

import (
	"fmt"
	"io"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/history"
	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/server"
	"github.com/matrix-sim/matrix/sim/timemodel"
	"github.com/matrix-sim/matrix/sim/trace"
)

const (
	// DefaultPool holds servers added one by one with AddServer.
	DefaultPool = "snowflakes"
	ClientsPool = "clients"
	// AdversariesPool hosts always run with the adversary time model.
	AdversariesPool = "adversaries"

	// GlobalRTT is published at Start with the time model's RTT estimate.
	GlobalRTT = "config.net.rtt"
)

// World owns every actor, the virtual clock and the single random stream,
// and runs the event loop: each step picks the runnable actor with the
// earliest next step time and lets it make exactly one step.
type World struct {
	seed   int64
	rng    *core.PartitionedRNG
	random *core.RandomSource

	clock      core.TimePoint
	startTime  core.TimePoint
	stepNumber uint64
	digest     *core.Digest

	tm  timemodel.TimeModel
	net *network.Network

	// Every server is registered in exactly one pool.
	pools       map[string][]*server.Server
	clients     []*server.Server
	adversaries []*server.Server
	byHost      map[string]*server.Server
	nextID      int

	// actors in registration order; the index breaks ties between actors
	// ready at the same time. The network joins last, at Start.
	actors    []core.Actor
	actorCtx  core.ActorContext
	recorder  *history.Recorder
	globals   map[string]any
	counters  map[string]int64
	guids     uint64
	logger    *logrus.Logger
	logs      *eventHook
	log       *logrus.Entry
	started   bool
	stopped   bool
	stopValue uint64
}

var _ server.World = (*World)(nil)

// NewWorld creates a world for seed. Register servers, then Start.
func NewWorld(seed int64, opts ...Option) *World {
	rng := core.NewPartitionedRNG(core.NewSimulationKey(seed))
	w := &World{
		seed:     seed,
		rng:      rng,
		random:   rng.ForSubsystem(core.SubsystemWorld),
		digest:   core.NewDigest(0),
		tm:       timemodel.NewCrazy(),
		pools:    make(map[string][]*server.Server),
		byHost:   make(map[string]*server.Server),
		globals:  make(map[string]any),
		counters: make(map[string]int64),
		nextID:   1,
	}
	w.logs = newEventHook(w)
	for _, opt := range opts {
		opt(w)
	}

	w.logger = logrus.New()
	w.logger.SetOutput(io.Discard)
	w.logger.SetLevel(w.logs.minLevel())
	w.logger.AddHook(w.logs)
	if w.logs.file != nil {
		fmt.Fprintln(w.logs.file, trace.Separator)
	}
	w.log = w.logger.WithField("component", "World")

	w.recorder = history.NewRecorder(w.Now)
	w.net = network.New(w)
	return w
}

// Registration

func (w *World) checkNotStarted(op string) {
	if w.started {
		panic(fmt.Sprintf("World.%s() after Start()", op))
	}
}

func (w *World) addServer(pool, host string, program server.Program, adversary bool) *server.Server {
	if _, dup := w.byHost[host]; dup {
		panic(fmt.Sprintf("duplicate host %q", host))
	}
	s := server.New(w, server.Config{
		ID:        w.nextID,
		Host:      host,
		Pool:      pool,
		Adversary: adversary,
	}, program)
	w.nextID++
	w.net.AddHost(s)
	w.byHost[host] = s
	w.actors = append(w.actors, s)
	return s
}

// AddServer adds a single server to the default pool.
func (w *World) AddServer(host string, program server.Program) {
	w.checkNotStarted("AddServer")
	w.pools[DefaultPool] = append(w.pools[DefaultPool], w.addServer(DefaultPool, host, program, false))
}

// AddPool adds size servers named Server-<pool>-<i>.
func (w *World) AddPool(pool string, program server.Program, size int) {
	w.AddPoolWithTemplate(pool, program, size, "Server-"+pool)
}

// AddPoolWithTemplate adds size servers named <template>-<i>, i from 1.
func (w *World) AddPoolWithTemplate(pool string, program server.Program, size int, template string) {
	w.checkNotStarted("AddPool")
	for i := 0; i < size; i++ {
		host := fmt.Sprintf("%s-%d", template, len(w.pools[pool])+1)
		w.pools[pool] = append(w.pools[pool], w.addServer(pool, host, program, false))
	}
}

// AddClient adds a client host Client-<i>.
func (w *World) AddClient(program server.Program) {
	w.checkNotStarted("AddClient")
	host := fmt.Sprintf("Client-%d", len(w.clients)+1)
	w.clients = append(w.clients, w.addServer(ClientsPool, host, program, false))
}

// AddClients adds n clients running the same program.
func (w *World) AddClients(program server.Program, n int) {
	for i := 0; i < n; i++ {
		w.AddClient(program)
	}
}

// AddAdversary adds an adversary host Adversary-<i>. With an adversary in
// the world new connections ping their peer first, so crashes and reboots
// are noticed early.
func (w *World) AddAdversary(program server.Program) {
	w.checkNotStarted("AddAdversary")
	host := fmt.Sprintf("Adversary-%d", len(w.adversaries)+1)
	w.adversaries = append(w.adversaries, w.addServer(AdversariesPool, host, program, true))
	w.net.SetPingOnConnect(true)
}

// HasAdversary reports whether any adversary host was added.
func (w *World) HasAdversary() bool {
	return len(w.adversaries) > 0
}

// SetTimeModel replaces the time model. Must be called before Start.
func (w *World) SetTimeModel(tm timemodel.TimeModel) {
	w.checkNotStarted("SetTimeModel")
	w.tm = tm
}

// Lifecycle

func (w *World) poolNames() []string {
	names := make([]string, 0, len(w.pools))
	for name := range w.pools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (w *World) scoped(a core.Actor, fn func()) {
	leave := w.actorCtx.Enter(a)
	defer leave()
	fn()
}

// Start fixes the start time, starts the network, then pool servers (pools
// by name), clients and adversaries.
func (w *World) Start() {
	if w.started {
		panic("World.Start() called more than once")
	}
	w.started = true

	w.log.Infof("Seed: %d", w.seed)
	w.tm.Initialize(w.random)
	w.clock = w.tm.GlobalStartTime()
	w.startTime = w.clock

	w.net.SetTimeModel(w.tm)
	w.actors = append(w.actors, w.net)
	w.scoped(w.net, w.net.Start)

	w.log.Infof("Cluster: %d, clients: %d", w.clusterSize(), len(w.clients))
	w.SetGlobal(GlobalRTT, int64(w.tm.EstimateRTT()))

	w.log.Info("Starting cluster...")
	for _, name := range w.poolNames() {
		for _, s := range w.pools[name] {
			w.scoped(s, s.Start)
		}
	}
	w.log.Info("Starting clients...")
	for _, s := range w.clients {
		w.scoped(s, s.Start)
	}
	w.log.Info("Starting adversaries...")
	for _, s := range w.adversaries {
		w.scoped(s, s.Start)
	}
	w.log.Info("World started")
}

func (w *World) clusterSize() int {
	n := 0
	for _, pool := range w.pools {
		n += len(pool)
	}
	return n
}

func (w *World) checkRunning(op string) {
	if !w.started {
		panic(fmt.Sprintf("World.%s() before Start()", op))
	}
	if w.stopped {
		panic(fmt.Sprintf("World.%s() after Stop()", op))
	}
}

// findNextStep returns the index of the actor to step next, -1 if none is
// runnable. Ties: lowest index wins because we use strict < and iterate in
// registration order.
func (w *World) findNextStep() (int, core.TimePoint) {
	next, at := -1, core.Infinity
	for i, a := range w.actors {
		if !a.IsRunnable() {
			continue
		}
		if t := a.NextStepTime(); next == -1 || t < at {
			next, at = i, t
		}
	}
	return next, at
}

// Step makes one step. Returns false when no actor is runnable (deadlock).
func (w *World) Step() bool {
	w.checkRunning("Step")
	i, at := w.findNextStep()
	if i < 0 {
		return false
	}
	if at < w.clock {
		panic("virtual time went backwards")
	}
	w.stepNumber++
	w.digest.Eat(uint64(at)).Eat(uint64(i))
	w.clock = at

	a := w.actors[i]
	w.log.Tracef("Next step: %d, actor: %s, random source touched: %d times", w.stepNumber, a.Name(), w.random.Draws())
	w.scoped(a, a.Step)
	return true
}

// MakeSteps makes up to n steps and returns how many were made.
func (w *World) MakeSteps(n int) int {
	made := 0
	for ; made < n; made++ {
		if !w.Step() {
			break
		}
	}
	return made
}

// RunFor steps until budget virtual jiffies passed since Start.
func (w *World) RunFor(budget core.Jiffies) {
	for w.TimeElapsed() < budget {
		if !w.Step() {
			break
		}
	}
}

// RunResult tells why RunUntil returned.
type RunResult int

const (
	Satisfied RunResult = iota
	Deadlock
	TimeLimit
)

func (r RunResult) String() string {
	switch r {
	case Satisfied:
		return "satisfied"
	case Deadlock:
		return "deadlock"
	case TimeLimit:
		return "time limit exceeded"
	default:
		return fmt.Sprintf("RunResult(%d)", int(r))
	}
}

// RunUntil steps until done() holds, nothing is runnable, or limit virtual
// jiffies passed since Start.
func (w *World) RunUntil(done func() bool, limit core.Jiffies) RunResult {
	for !done() {
		if w.TimeElapsed() >= limit {
			return TimeLimit
		}
		if !w.Step() {
			return Deadlock
		}
	}
	return Satisfied
}

// Stop shuts every actor down and returns the digest. Adversaries stop
// first, then the network and the servers (each folding its terminal digest
// in), then clients. The history is finalized last.
func (w *World) Stop() uint64 {
	if w.stopped {
		panic("World.Stop() called more than once")
	}
	if !w.started {
		panic("World.Stop() before Start()")
	}

	for _, s := range w.adversaries {
		w.scoped(s, s.Shutdown)
	}
	w.log.Info("Adversaries stopped")

	w.digest.Eat(w.net.Digest())
	w.scoped(w.net, w.net.Shutdown)
	w.log.Info("Network stopped")

	for _, name := range w.poolNames() {
		for _, s := range w.pools[name] {
			w.digest.Eat(s.ComputeDigest())
			w.scoped(s, s.Shutdown)
		}
	}
	w.log.Info("Servers stopped")

	for _, s := range w.clients {
		w.scoped(s, s.Shutdown)
	}
	w.log.Info("Clients stopped")

	w.recorder.Finalize()
	w.log.Info("Simulation stopped")

	w.stopped = true
	w.stopValue = w.digest.Value()
	return w.stopValue
}

// RestartServer fast-reboots host from outside the event loop.
func (w *World) RestartServer(host string) {
	s := w.Server(host)
	w.scoped(s, s.FastReboot)
}

// Environment (core.Env, server.World)

func (w *World) Now() core.TimePoint            { return w.clock }
func (w *World) StepNumber() uint64             { return w.stepNumber }
func (w *World) Random() *core.RandomSource     { return w.random }
func (w *World) Actors() *core.ActorContext     { return &w.actorCtx }
func (w *World) Logger() *logrus.Logger         { return w.logger }
func (w *World) TimeModel() timemodel.TimeModel { return w.tm }
func (w *World) Network() *network.Network      { return w.net }

// ListPool returns the hosts of pool; empty for an unknown pool.
func (w *World) ListPool(name string) []string {
	var hosts []string
	switch name {
	case ClientsPool:
		for _, s := range w.clients {
			hosts = append(hosts, s.HostName())
		}
	case AdversariesPool:
		for _, s := range w.adversaries {
			hosts = append(hosts, s.HostName())
		}
	default:
		for _, s := range w.pools[name] {
			hosts = append(hosts, s.HostName())
		}
	}
	return hosts
}

// GenerateGuid returns short, unique, non-monotonic strings.
func (w *World) GenerateGuid() string {
	const chars = "YXZ"
	w.guids++
	return fmt.Sprintf("guid-%c-%d", chars[w.guids%uint64(len(chars))], w.guids)
}

// Globals and counters

// SetGlobal stores a value visible to every program through the runtime.
func (w *World) SetGlobal(key string, v any) {
	w.globals[key] = v
}

// TryGetGlobal returns the global stored under key, if any.
func (w *World) TryGetGlobal(key string) (any, bool) {
	v, ok := w.globals[key]
	return v, ok
}

// GetGlobal implements server.World.
func (w *World) GetGlobal(key string) (any, bool) {
	return w.TryGetGlobal(key)
}

// MustGetGlobal panics if key is not set.
func (w *World) MustGetGlobal(key string) any {
	v, ok := w.globals[key]
	if !ok {
		panic(fmt.Sprintf("global %q not set", key))
	}
	return v
}

// InitCounter sets counter name to value.
func (w *World) InitCounter(name string, value int64) {
	w.counters[name] = value
}

// IncrementCounter adds one to counter name and returns the new value.
func (w *World) IncrementCounter(name string) int64 {
	w.counters[name]++
	return w.counters[name]
}

// Counter returns the value of counter name, 0 if never set.
func (w *World) Counter(name string) int64 {
	return w.counters[name]
}

// Observability

func (w *World) Seed() int64 { return w.seed }

// Digest returns the running digest; after Stop, the final one.
func (w *World) Digest() uint64 {
	if w.stopped {
		return w.stopValue
	}
	return w.digest.Value()
}

// StepCount is the number of steps made so far.
func (w *World) StepCount() uint64 { return w.stepNumber }

// TimeElapsed is virtual time since Start.
func (w *World) TimeElapsed() core.Jiffies {
	return w.clock.Sub(w.startTime)
}

// RandomSteps counts draws from the world random stream.
func (w *World) RandomSteps() uint64 {
	return w.random.Draws()
}

// EventLog returns the captured log events in order.
func (w *World) EventLog() trace.EventLog {
	return w.logs.events
}

// Recorder is where client channels report their calls.
func (w *World) Recorder() *history.Recorder {
	return w.recorder
}

// History is available after Stop.
func (w *World) History() history.History {
	return w.recorder.History()
}

// Stdout returns the lines host printed, across crashes.
func (w *World) Stdout(host string) []string {
	return w.Server(host).Stdout()
}

// Server returns the server, client or adversary named host.
func (w *World) Server(host string) *server.Server {
	s, ok := w.byHost[host]
	if !ok {
		panic(fmt.Sprintf("unknown host %q", host))
	}
	return s
}

// Hosts lists every host in registration order.
func (w *World) Hosts() []string {
	return w.net.Hosts()
}
