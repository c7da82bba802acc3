package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/matrix-sim/matrix/examples/kv"
	"github.com/matrix-sim/matrix/sim/adversary"
	"github.com/matrix-sim/matrix/sim/core"
	"github.com/matrix-sim/matrix/sim/server"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

// Adversary kinds accepted besides the built-in fault names.
const (
	adversaryNone  = "none"
	adversaryMixed = "mixed"
	adversaryLua   = "lua"
)

// Scenario describes a KV simulation. Zero cluster sizes are drawn per seed.
// All fields must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Seed              int64  `yaml:"seed"`
	TimeModel         string `yaml:"time_model"`
	Replicas          int    `yaml:"replicas"`
	Clients           int    `yaml:"clients"`
	Keys              int    `yaml:"keys"`
	RequestsThreshold int64  `yaml:"requests_threshold"`
	TimeLimit         int64  `yaml:"time_limit"`
	Adversary         string `yaml:"adversary"` // none, mixed, lua or a fault name; default star
	AdversaryScript   string `yaml:"adversary_script"`
	LogLevel          string `yaml:"log_level"`
}

// DefaultScenario is the KV example as it runs without a scenario file.
func DefaultScenario() *Scenario {
	return &Scenario{
		Seed:              42,
		TimeModel:         "crazy",
		RequestsThreshold: kv.DefaultRequestsThreshold,
		TimeLimit:         int64(kv.DefaultTimeLimit),
		Adversary:         "star",
		LogLevel:          "error",
	}
}

// LoadScenario reads a scenario file over the defaults. Unknown fields are
// errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	sc := DefaultScenario()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(sc); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return sc, nil
}

// Validate checks field ranges. It does not touch the adversary script.
func (s *Scenario) Validate() error {
	if !timemodel.IsValid(s.TimeModel) {
		return fmt.Errorf("unknown time_model %q (valid: %v)", s.TimeModel, timemodel.Names())
	}
	if s.Replicas < 0 || s.Clients < 0 {
		return fmt.Errorf("replicas and clients must be >= 0, got %d and %d", s.Replicas, s.Clients)
	}
	if s.Keys < 0 || s.Keys > len(kv.Keys) {
		return fmt.Errorf("keys must be in [0, %d], got %d", len(kv.Keys), s.Keys)
	}
	if s.RequestsThreshold <= 0 {
		return fmt.Errorf("requests_threshold must be > 0, got %d", s.RequestsThreshold)
	}
	if s.TimeLimit <= 0 {
		return fmt.Errorf("time_limit must be > 0, got %d", s.TimeLimit)
	}
	switch s.Adversary {
	case adversaryNone, adversaryMixed:
	case adversaryLua:
		if s.AdversaryScript == "" {
			return fmt.Errorf("adversary lua needs adversary_script")
		}
	default:
		if !adversary.IsFault(s.Adversary) {
			return fmt.Errorf("unknown adversary %q, expected none, mixed, lua or one of %v", s.Adversary, adversary.FaultNames())
		}
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level is the parsed log level. Validate first.
func (s *Scenario) Level() logrus.Level {
	level, _ := logrus.ParseLevel(s.LogLevel)
	return level
}

// AdversaryProgram resolves the adversary, loading the script if needed.
// The returned program is safe to share between worlds.
func (s *Scenario) AdversaryProgram() (server.Program, error) {
	switch s.Adversary {
	case adversaryNone:
		return nil, nil
	case adversaryMixed:
		faults := make([]adversary.Fault, 0)
		for _, name := range adversary.FaultNames() {
			f, _ := adversary.FaultByName(name)
			faults = append(faults, f)
		}
		return adversary.Loop(kv.Pool, adversary.DefaultTiming, adversary.Mixed(faults...)), nil
	case adversaryLua:
		strategy, err := adversary.LoadLuaStrategy(s.AdversaryScript)
		if err != nil {
			return nil, err
		}
		return strategy.Program(), nil
	default:
		f, err := adversary.FaultByName(s.Adversary)
		if err != nil {
			return nil, err
		}
		return adversary.Loop(kv.Pool, adversary.DefaultTiming, f), nil
	}
}

// Params draws the cluster shape for seed and applies the fixed fields.
func (s *Scenario) Params(seed int64, adv server.Program) kv.Params {
	p := kv.RandomParams(seed)
	if s.Replicas > 0 {
		p.Replicas = s.Replicas
	}
	if s.Clients > 0 {
		p.Clients = s.Clients
	}
	if s.Keys > 0 {
		p.Keys = s.Keys
	}
	p.RequestsThreshold = s.RequestsThreshold
	p.TimeLimit = core.Jiffies(s.TimeLimit)
	p.Adversary = adv
	return p
}
