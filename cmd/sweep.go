package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matrix-sim/matrix/examples/kv"
)

var (
	sweepCount    int
	sweepParallel int
	sweepFailFast bool
)

// Sweep runs count consecutive seeds starting at from, parallel worlds at a
// time. Reports come back in seed order. With failFast the first failing seed
// is returned as the error and seeds not yet started are skipped, leaving nil
// reports.
func Sweep(s *simulation, from int64, count, parallel int, failFast bool) ([]*kv.Report, error) {
	reports := make([]*kv.Report, count)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(parallel, 1))
	for i := 0; i < count; i++ {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r := s.run(from + int64(i))
			reports[i] = r
			if failFast {
				return r.Err()
			}
			return nil
		})
	}
	err := g.Wait()
	return reports, err
}

func renderSweep(w io.Writer, all []*kv.Report) int {
	reports := slices.DeleteFunc(slices.Clone(all), func(r *kv.Report) bool { return r == nil })
	failed := 0
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("SEED", "REPLICAS", "CLIENTS", "STEPS", "TIME", "REQUESTS", "RESULT", "DIGEST").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row >= 0 && col == 6 && reports[row].Err() != nil {
				return styleFail
			}
			return lipgloss.NewStyle()
		})
	for _, r := range reports {
		result := "ok"
		if err := r.Err(); err != nil {
			failed++
			result = r.Outcome.String()
			if r.Requests >= r.Params.RequestsThreshold {
				result = r.Check.Verdict.String()
			}
		}
		t.Row(
			strconv.FormatInt(r.Seed, 10),
			strconv.Itoa(r.Params.Replicas),
			strconv.Itoa(r.Params.Clients),
			strconv.FormatUint(r.Steps, 10),
			strconv.FormatInt(int64(r.Elapsed), 10),
			strconv.FormatInt(r.Requests, 10),
			result,
			strconv.FormatUint(r.Digest, 10),
		)
	}
	fmt.Fprintln(w, t)
	return failed
}

// sweepCmd runs many seeds in parallel worlds
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run consecutive seeds in parallel and tabulate the results",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSimulation(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		// Worlds run concurrently; keep their logs to themselves.
		s.console = nil
		if logFile != "" {
			logrus.Warn("--log-file is ignored by sweep")
		}

		reports, err := Sweep(s, s.sc.Seed, sweepCount, sweepParallel, sweepFailFast)
		out := cmd.OutOrStdout()
		failed := renderSweep(out, reports)
		if err != nil {
			fmt.Fprintln(out, styleFail.Render(err.Error()))
			os.Exit(1)
		}
		if failed > 0 {
			fmt.Fprintln(out, styleFail.Render(fmt.Sprintf("%d of %d seeds failed", failed, len(reports))))
			os.Exit(1)
		}
		fmt.Fprintln(out, styleOK.Render(fmt.Sprintf("all %d seeds passed", len(reports))))
	},
}

func init() {
	sweepCmd.Flags().IntVar(&sweepCount, "count", 32, "Number of seeds")
	sweepCmd.Flags().IntVar(&sweepParallel, "parallel", runtime.NumCPU(), "Worlds run at once")
	sweepCmd.Flags().BoolVar(&sweepFailFast, "fail-fast", false, "Stop starting seeds after the first failure")
	rootCmd.AddCommand(sweepCmd)
}
