package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/matrix-sim/matrix/sim/core"
)

// DeterminismSeed is the seed the determinism check runs twice.
const DeterminismSeed int64 = 104107713

var (
	checkDeterminism bool
	simulations      int
)

// checkDeterministic runs DeterminismSeed twice and compares the digests.
func checkDeterministic(s *simulation, out io.Writer) error {
	fmt.Fprintf(out, "Test determinism with seed %d:\n", DeterminismSeed)
	first := s.run(DeterminismSeed)
	second := s.run(DeterminismSeed)
	if first.Digest != second.Digest || first.Steps != second.Steps {
		return fmt.Errorf("simulation is not deterministic: digest = %d, digest2 = %d", first.Digest, second.Digest)
	}
	fmt.Fprintln(out, "Determinism test is OK")
	return nil
}

// SeedSequence derives count run seeds from the sequence seed.
func SeedSequence(seqSeed int64, count int) []int64 {
	r := core.NewPartitionedRNG(core.NewSimulationKey(seqSeed)).ForSubsystem(core.SubsystemSeeds)
	seeds := make([]int64, count)
	for i := range seeds {
		seeds[i] = int64(r.Next() >> 1)
	}
	return seeds
}

// runSimulations stops at the first failing seed and prints its report.
func runSimulations(s *simulation, out io.Writer, seqSeed int64, count int) error {
	fmt.Fprintf(out, "Run %d simulations...\n", count)
	for i, sd := range SeedSequence(seqSeed, count) {
		r := s.run(sd)
		logrus.Debugf("Simulation %d: %s", i+1, r.Summary())
		if err := r.Err(); err != nil {
			_ = r.WriteFailure(out)
			return err
		}
	}
	return nil
}

// checkCmd is the test runner: determinism first, then many random seeds
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check determinism and run many random simulations",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSimulation(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		// Per-run console output would drown the progress.
		s.console = nil
		closeLog, err := s.openLogFile()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer closeLog()

		out := cmd.OutOrStdout()
		if checkDeterminism {
			err = checkDeterministic(s, out)
		}
		if err == nil && simulations > 0 {
			err = runSimulations(s, out, s.sc.Seed, simulations)
		}
		if err != nil {
			fmt.Fprintln(out, styleFail.Render(err.Error()))
			closeLog()
			os.Exit(1)
		}
		fmt.Fprintln(out, styleOK.Render("Looks good!"))
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkDeterminism, "det", false, "Check determinism first")
	checkCmd.Flags().IntVar(&simulations, "sims", 100, "Number of random simulations")
	rootCmd.AddCommand(checkCmd)
}
