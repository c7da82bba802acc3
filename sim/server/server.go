// Package server implements the simulated server process: a state machine
// (initial, running, paused, crashed) around a task queue, fibers, a memory
// arena, a transport and a persistent filesystem, plus the Runtime handle
// server programs use to reach all of it.
package server

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/fs"
	"github.com/matrix-sim/matrix/sim/network"
	"github.com/matrix-sim/matrix/sim/process"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// State is the lifecycle state of a server.
type State int

const (
	Initial State = iota
	Running
	Paused
	Crashed
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Program is the code a server runs after every launch.
type Program func(rt *Runtime)

const (
	DefaultRPCPort network.Port = 42
	DefaultDBPath               = "/db"
)

// Config describes one server.
type Config struct {
	ID   int
	Host string
	Pool string
	// Adversary hosts always run with the exact adversary time model.
	Adversary bool
	RPCPort   network.Port
	DBPath    string
}

// World is what a server needs from the simulation around it.
type World interface {
	core.Env
	TimeModel() timemodel.TimeModel
	Network() *network.Network
	ListPool(name string) []string
	GetGlobal(key string) (any, bool)
	SetGlobal(key string, v any)
	IncrementCounter(name string) int64
	GenerateGuid() string
	Faults() Faults
}

// Faults gives adversaries access to fault injection.
type Faults interface {
	FaultyServer(host string) FaultyServer
	FaultyNetwork() network.FaultyNetwork
}

// FaultyServer is the fault-injection surface of a server.
type FaultyServer interface {
	Name() string
	IsAlive() bool
	Pause()
	Resume()
	Crash()
	Launch()
	FastReboot()
	AdjustWallClock()
	ListFiles(prefix string) []string
	CorruptFile(path string)
}

// Server is a simulated process host. It is a core.Actor and a network.Host.
type Server struct {
	cfg     Config
	program Program
	world   World
	log     *logrus.Entry

	state State

	// volatile
	sched   *process.Scheduler
	mem     *process.Memory
	fibers  *process.Fibers
	runtime *Runtime

	transport *network.Transport
	fs        *fs.FileSystem
	model     timemodel.ServerTimeModel
	wall      *process.WallClock
	mono      *process.MonotonicClock

	stdout   []string
	launches int
}

var _ core.Actor = (*Server)(nil)
var _ network.Host = (*Server)(nil)
var _ FaultyServer = (*Server)(nil)

// New creates a server in the Initial state. The caller registers it with
// the network before the network starts.
func New(w World, cfg Config, program Program) *Server {
	if cfg.RPCPort == 0 {
		cfg.RPCPort = DefaultRPCPort
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath
	}
	s := &Server{
		cfg:     cfg,
		program: program,
		world:   w,
		log:     w.Logger().WithField("component", "Server"),
		mem:     process.NewMemory(),
		fs:      fs.New(w.Logger().WithField("component", "Filesystem")),
		wall:    process.NewWallClock(w.Now),
		mono:    process.NewMonotonicClock(w.Now),
	}
	s.sched = process.NewScheduler(w.Now)
	s.transport = network.NewTransport(w.Network(), cfg.Host, s.mem, s.sched)
	return s
}

func (s *Server) Config() Config          { return s.cfg }
func (s *Server) HostName() string        { return s.cfg.Host }
func (s *Server) Name() string            { return s.cfg.Host }
func (s *Server) State() State            { return s.state }
func (s *Server) Stdout() []string        { return s.stdout }
func (s *Server) Launches() int           { return s.launches }
func (s *Server) Memory() *process.Memory { return s.mem }

// HandlePacket hands an incoming packet to the transport. The network makes
// this server the current actor first.
func (s *Server) HandlePacket(p network.Packet, out *network.Link) {
	s.transport.HandlePacket(p, out)
}

// Actor

// Start acquires the server time model, initializes clocks and launches the
// program.
func (s *Server) Start() {
	if s.cfg.Adversary {
		s.model = timemodel.NewAdversaryModel()
	} else {
		s.model = s.world.TimeModel().NewServerModel(s.cfg.Host)
	}
	s.wall.Init(s.model)
	s.mono.Init(s.model)
	s.Launch()
}

func (s *Server) IsRunnable() bool {
	return s.state == Running && !s.sched.IsEmpty()
}

func (s *Server) NextStepTime() core.TimePoint {
	return s.sched.NextTaskTime()
}

// Step runs exactly one task to completion.
func (s *Server) Step() {
	s.sched.TakeNext().Run()
}

// Shutdown crashes the server unless it already is crashed.
func (s *Server) Shutdown() {
	if s.state != Crashed {
		s.Crash()
	}
}

// ComputeDigest is 0 for a crashed server, otherwise a fold of arena usage
// and filesystem contents.
func (s *Server) ComputeDigest() uint64 {
	if s.state == Crashed {
		return 0
	}
	return core.NewDigest(0).Eat(uint64(s.mem.BytesAllocated())).Eat(s.fs.Digest()).Value()
}

// Faults

func (s *Server) IsAlive() bool {
	return s.state == Running || s.state == Paused
}

// Crash wipes every volatile resource; files survive. Panics if the server
// already is crashed.
func (s *Server) Crash() {
	if s.state == Crashed {
		panic("server already crashed")
	}
	s.log.Infof("crash server %s", s.cfg.Host)

	leave := s.world.Actors().Enter(s)
	defer leave()

	if s.fibers != nil {
		s.fibers.KillAll()
	}
	s.transport.Reset()
	s.fs.Reset()
	s.sched.Reset()
	s.mem.Reset()
	s.fibers = nil
	s.runtime = nil
	s.state = Crashed
}

// Launch starts the program from scratch. Valid only in Initial or Crashed.
func (s *Server) Launch() {
	if s.state != Initial && s.state != Crashed {
		panic(fmt.Sprintf("cannot launch %s server %s", s.state, s.cfg.Host))
	}
	leave := s.world.Actors().Enter(s)
	defer leave()

	s.mono.Reset(s.model)
	s.log.Infof("starting process on %s", s.cfg.Host)

	s.fibers = process.NewFibers(s.sched, s.mem, s.world.Logger().WithField("component", "Fibers"))
	s.runtime = newRuntime(s)
	rt := s.runtime
	s.fibers.Spawn("main", func() { s.program(rt) })

	s.launches++
	s.state = Running
}

// FastReboot is Crash followed by Launch; a no-op unless the server is alive.
func (s *Server) FastReboot() {
	if !s.IsAlive() {
		return
	}
	s.Crash()
	s.Launch()
}

// Pause freezes the task queue; a no-op unless the server is running.
func (s *Server) Pause() {
	if s.state != Running {
		return
	}
	s.log.Infof("pause server %s", s.cfg.Host)
	s.state = Paused
}

// Resume unfreezes a paused server. Tasks that became due while paused run
// at the current time.
func (s *Server) Resume() {
	if s.state != Paused {
		return
	}
	s.log.Infof("resume server %s", s.cfg.Host)
	s.sched.Rebase(s.world.Now())
	s.state = Running
}

// AdjustWallClock redraws the wall clock offset.
func (s *Server) AdjustWallClock() {
	s.log.Infof("adjust wall time clock on %s", s.cfg.Host)
	leave := s.world.Actors().Enter(s)
	defer leave()
	s.wall.AdjustOffset(s.model)
}

func (s *Server) ListFiles(prefix string) []string {
	return s.fs.ListFiles(prefix)
}

func (s *Server) CorruptFile(path string) {
	s.fs.Corrupt(path, s.world.Random())
}

// FileSystem exposes the persistent filesystem for inspection.
func (s *Server) FileSystem() *fs.FileSystem {
	return s.fs
}

// Runtime returns the handle of the current launch, nil while crashed.
func (s *Server) Runtime() *Runtime {
	return s.runtime
}

func (s *Server) println(line string) {
	s.stdout = append(s.stdout, line)
}
