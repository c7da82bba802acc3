package adversary

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/server"
)

// LuaConfig is the table a Lua adversary script returns.
//
//	return {
//	  pool = "kv",
//	  rounds = 10,             -- 0 runs forever
//	  wait_min = 10, wait_max = 1000,
//	  hold_min = 100, hold_max = 300,
//	  faults = {"star", "crash"},
//	}
//
// A script may instead define a global function round(i); it then drives
// every round itself through the matrix module, and faults is ignored.
type LuaConfig struct {
	Pool    string
	Rounds  int
	WaitMin int64
	WaitMax int64
	HoldMin int64
	HoldMax int64
	Faults  []string
}

func (c *LuaConfig) timing() Timing {
	t := Timing{
		WaitMin: core.Jiffies(c.WaitMin), WaitMax: core.Jiffies(c.WaitMax),
		HoldMin: core.Jiffies(c.HoldMin), HoldMax: core.Jiffies(c.HoldMax),
	}
	if t.WaitMax == 0 {
		t.WaitMin, t.WaitMax = DefaultTiming.WaitMin, DefaultTiming.WaitMax
	}
	if t.HoldMax == 0 {
		t.HoldMin, t.HoldMax = DefaultTiming.HoldMin, DefaultTiming.HoldMax
	}
	return t
}

// LuaStrategy is an adversary scripted in Lua.
type LuaStrategy struct {
	name     string
	proto    *lua.FunctionProto
	cfg      LuaConfig
	hasRound bool
}

// LoadLuaStrategy reads and validates a script file.
func LoadLuaStrategy(path string) (*LuaStrategy, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading adversary script: %w", err)
	}
	return NewLuaStrategy(path, string(src))
}

// NewLuaStrategy compiles src and evaluates it once to read its config. The
// matrix module is unavailable at the top level of the script.
func NewLuaStrategy(name, src string) (*LuaStrategy, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}

	s := &LuaStrategy{name: name, proto: proto}
	L := lua.NewState()
	defer L.Close()
	if err := s.load(L, &luaHost{}); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid adversary script %s: %w", name, err)
	}
	return s, nil
}

// load runs the chunk and maps the returned table into s.cfg.
func (s *LuaStrategy) load(L *lua.LState, host *luaHost) error {
	L.SetGlobal("matrix", L.SetFuncs(L.NewTable(), host.funcs()))
	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return fmt.Errorf("running %s: %w", s.name, err)
	}
	table, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		return fmt.Errorf("%s did not return a config table", s.name)
	}
	var cfg LuaConfig
	if err := gluamapper.Map(table, &cfg); err != nil {
		return fmt.Errorf("mapping %s config: %w", s.name, err)
	}
	s.cfg = cfg
	_, s.hasRound = L.GetGlobal("round").(*lua.LFunction)
	return nil
}

func (s *LuaStrategy) validate() error {
	if s.cfg.Pool == "" {
		return fmt.Errorf("pool is required")
	}
	if s.cfg.Rounds < 0 {
		return fmt.Errorf("rounds must be >= 0, got %d", s.cfg.Rounds)
	}
	if s.cfg.WaitMax < s.cfg.WaitMin || s.cfg.HoldMax < s.cfg.HoldMin {
		return fmt.Errorf("empty delay range")
	}
	if !s.hasRound && len(s.cfg.Faults) == 0 {
		return fmt.Errorf("script defines neither round() nor faults")
	}
	for _, f := range s.cfg.Faults {
		if !IsFault(f) {
			return fmt.Errorf("unknown fault %q, expected one of %v", f, FaultNames())
		}
	}
	return nil
}

func (s *LuaStrategy) Config() LuaConfig {
	return s.cfg
}

// Program returns the adversary program running the script. Every launch
// gets a fresh Lua state. Script errors inside round() abort the simulation.
func (s *LuaStrategy) Program() server.Program {
	return func(rt *server.Runtime) {
		host := &luaHost{rt: rt, pool: s.cfg.Pool}
		L := lua.NewState()
		defer L.Close()
		if err := s.load(L, host); err != nil {
			panic(fmt.Sprintf("lua adversary: %v", err))
		}

		hosts := rt.ListPool(s.cfg.Pool)
		if len(hosts) == 0 {
			rt.Logger().Warnf("pool %q is empty, adversary idle", s.cfg.Pool)
			return
		}
		timing := s.cfg.timing()
		var fault Fault
		if !s.hasRound {
			faults := make([]Fault, 0, len(s.cfg.Faults))
			for _, name := range s.cfg.Faults {
				f, _ := FaultByName(name)
				faults = append(faults, f)
			}
			fault = Mixed(faults...)
		}

		for i := 1; s.cfg.Rounds == 0 || i <= s.cfg.Rounds; i++ {
			if fault != nil {
				runRound(rt, timing, hosts, fault)
				continue
			}
			// Unprotected: a kill must unwind through the interpreter.
			err := L.CallByParam(lua.P{Fn: L.GetGlobal("round"), NRet: 0, Protect: false}, lua.LNumber(i))
			if err != nil {
				panic(fmt.Sprintf("lua adversary: round %d: %v", i, err))
			}
		}
		rt.Logger().Infof("adversary script %s done", s.name)
	}
}

// luaHost backs the matrix module. rt is nil while the config is read.
type luaHost struct {
	rt   *server.Runtime
	pool string
}

func (h *luaHost) funcs() map[string]lua.LGFunction {
	return map[string]lua.LGFunction{
		"sleep":        h.wrap("sleep", h.sleep),
		"random":       h.wrap("random", h.random),
		"now":          h.wrap("now", h.now),
		"pool":         h.wrap("pool", h.listPool),
		"log":          h.wrap("log", h.log),
		"star":         h.wrap("star", h.star),
		"split":        h.wrap("split", h.split),
		"isolate":      h.wrap("isolate", h.isolate),
		"heal":         h.wrap("heal", h.heal),
		"crash":        h.wrap("crash", h.server(server.FaultyServer.Crash)),
		"launch":       h.wrap("launch", h.server(server.FaultyServer.Launch)),
		"reboot":       h.wrap("reboot", h.server(server.FaultyServer.FastReboot)),
		"pause":        h.wrap("pause", h.server(server.FaultyServer.Pause)),
		"resume":       h.wrap("resume", h.server(server.FaultyServer.Resume)),
		"adjust_clock": h.wrap("adjust_clock", h.server(server.FaultyServer.AdjustWallClock)),
		"is_alive":     h.wrap("is_alive", h.isAlive),
	}
}

func (h *luaHost) wrap(name string, fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if h.rt == nil {
			L.RaiseError("matrix.%s is only available inside round()", name)
			return 0
		}
		return fn(L)
	}
}

func (h *luaHost) sleep(L *lua.LState) int {
	h.rt.Sleep(core.Jiffies(L.CheckInt64(1)))
	return 0
}

// random(n) draws from [0, n); random(lo, hi) from [lo, hi).
func (h *luaHost) random(L *lua.LState) int {
	if L.GetTop() == 1 {
		n := L.CheckInt64(1)
		if n <= 0 {
			L.ArgError(1, "bound must be positive")
		}
		L.Push(lua.LNumber(h.rt.RandomNumber(uint64(n))))
		return 1
	}
	lo, hi := L.CheckInt64(1), L.CheckInt64(2)
	if lo < 0 || hi <= lo {
		L.ArgError(2, "empty range")
	}
	L.Push(lua.LNumber(h.rt.RandomRange(uint64(lo), uint64(hi))))
	return 1
}

func (h *luaHost) now(L *lua.LState) int {
	L.Push(lua.LNumber(h.rt.Now()))
	return 1
}

func (h *luaHost) listPool(L *lua.LState) int {
	t := L.NewTable()
	for _, host := range h.rt.ListPool(L.OptString(1, h.pool)) {
		t.Append(lua.LString(host))
	}
	L.Push(t)
	return 1
}

func (h *luaHost) log(L *lua.LState) int {
	h.rt.Logger().Info(L.CheckString(1))
	return 0
}

// star(center) keeps only the links of center inside the configured pool.
func (h *luaHost) star(L *lua.LState) int {
	center := L.CheckString(1)
	pool := h.rt.ListPool(h.pool)
	for i, host := range pool {
		if host == center {
			MakeStar(h.rt.Faults().FaultyNetwork(), pool, i)
			return 0
		}
	}
	L.ArgError(1, fmt.Sprintf("%s is not in pool %s", center, h.pool))
	return 0
}

// split({hosts}) cuts the given hosts from the rest of the network.
func (h *luaHost) split(L *lua.LState) int {
	t := L.CheckTable(1)
	lhs := make([]string, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		lhs = append(lhs, lua.LVAsString(t.RawGetInt(i)))
	}
	h.rt.Faults().FaultyNetwork().Split(lhs)
	return 0
}

func (h *luaHost) isolate(L *lua.LState) int {
	Isolate(h.rt.Faults().FaultyNetwork(), h.rt.ListPool(h.pool), L.CheckString(1))
	return 0
}

func (h *luaHost) heal(L *lua.LState) int {
	h.rt.Faults().FaultyNetwork().Heal()
	return 0
}

func (h *luaHost) server(op func(server.FaultyServer)) lua.LGFunction {
	return func(L *lua.LState) int {
		op(h.rt.Faults().FaultyServer(L.CheckString(1)))
		return 0
	}
}

func (h *luaHost) isAlive(L *lua.LState) int {
	L.Push(lua.LBool(h.rt.Faults().FaultyServer(L.CheckString(1)).IsAlive()))
	return 1
}
