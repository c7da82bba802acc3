package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/matrix-sim/matrix/examples/kv"
	"github.com/matrix-sim/matrix/sim"
	"github.com/matrix-sim/matrix/sim/server"
	"github.com/matrix-sim/matrix/sim/timemodel"
)

var (
	seed         int64  // Simulation seed
	logLevel     string // Log verbosity level
	logFile      string // Text event log, appended
	timeModel    string // Latency model name
	scenarioPath string // Scenario YAML file
	presetName   string // Built-in scenario
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Deterministic simulator for distributed protocols",
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadScenario reads --scenario (or the defaults) and applies explicitly
// set flags on top of it.
func loadScenario(cmd *cobra.Command) (*Scenario, error) {
	sc := DefaultScenario()
	if presetName != "" && scenarioPath != "" {
		return nil, fmt.Errorf("--preset and --scenario are mutually exclusive")
	}
	if presetName != "" {
		preset, err := GetPreset(presetName)
		if err != nil {
			return nil, err
		}
		sc = preset
	}
	if scenarioPath != "" {
		loaded, err := LoadScenario(scenarioPath)
		if err != nil {
			return nil, err
		}
		sc = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		logrus.Infof("CLI --seed %d overrides scenario seed %d", seed, sc.Seed)
		sc.Seed = seed
	}
	if flags.Changed("time-model") {
		sc.TimeModel = timeModel
	}
	if flags.Changed("log") {
		sc.LogLevel = logLevel
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// simulation runs KV worlds for one scenario.
type simulation struct {
	sc        *Scenario
	adversary server.Program
	console   io.Writer
	logFile   io.Writer
}

func newSimulation(cmd *cobra.Command) (*simulation, error) {
	sc, err := loadScenario(cmd)
	if err != nil {
		return nil, err
	}
	logrus.SetLevel(sc.Level())
	adv, err := sc.AdversaryProgram()
	if err != nil {
		return nil, err
	}
	return &simulation{sc: sc, adversary: adv, console: cmd.ErrOrStderr()}, nil
}

// openLogFile appends the event log of every run to --log-file.
func (s *simulation) openLogFile() (func() error, error) {
	if logFile == "" {
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	s.logFile = f
	return f.Close, nil
}

func (s *simulation) options() []sim.Option {
	tm, err := timemodel.New(s.sc.TimeModel)
	if err != nil {
		// Validate already checked the name.
		panic(err)
	}
	level := s.sc.Level()
	opts := []sim.Option{sim.WithTimeModel(tm)}
	if level > logrus.InfoLevel {
		opts = append(opts, sim.WithLogLevel(level))
	}
	if s.console != nil {
		opts = append(opts, sim.WithConsole(s.console, level))
	}
	if s.logFile != nil {
		opts = append(opts, sim.WithLogFile(s.logFile))
	}
	return opts
}

func (s *simulation) run(seed int64) *kv.Report {
	params := s.sc.Params(seed, s.adversary)
	logrus.Debugf("Simulation seed: %d, parameters: %s", seed, params)
	return kv.Run(seed, params, s.options()...)
}

// runCmd executes a single simulation
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the KV simulation for one seed",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSimulation(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		closeLog, err := s.openLogFile()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer closeLog()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run single simulation with seed = %d\n", s.sc.Seed)
		r := s.run(s.sc.Seed)
		fmt.Fprintln(out, r.Summary())
		printSummary(out, r)

		if pcapPath != "" {
			if err := writePcap(pcapPath, r); err != nil {
				logrus.Fatalf("%v", err)
			}
		}
		if printHistory {
			printKVHistory(out, r)
		}
		if err := r.Err(); err != nil {
			_ = r.WriteFailure(out)
			fmt.Fprintln(out, styleFail.Render("FAIL"))
			closeLog()
			os.Exit(1)
		}
		fmt.Fprintln(out, styleOK.Render("OK"))
	},
}

var (
	pcapPath     string
	printHistory bool
)

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Simulation seed")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append the text event log of every run to this file")
	rootCmd.PersistentFlags().StringVar(&timeModel, "time-model", "crazy", "Time model (crazy, calm)")
	rootCmd.PersistentFlags().StringVar(&scenarioPath, "scenario", "", "Scenario YAML file")
	rootCmd.PersistentFlags().StringVar(&presetName, "preset", "", "Built-in scenario (smoke, star, partitions, chaos)")

	runCmd.Flags().StringVar(&pcapPath, "pcap", "", "Write delivered frames to this pcap file")
	runCmd.Flags().BoolVar(&printHistory, "history", false, "Print the recorded history")

	rootCmd.AddCommand(runCmd)
}
