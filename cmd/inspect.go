package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/matrix-sim/matrix/examples/echo"
	"github.com/matrix-sim/matrix/examples/kv"
	"github.com/matrix-sim/matrix/sim"
	"github.com/matrix-sim/matrix/sim/trace"
)

const runBatch = 100

var (
	inspectExample string

	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarn)
)

// inspectModel steps a started world and follows its event log.
type inspectModel struct {
	world   *sim.World
	counter string

	shown    int
	lines    []string
	deadlock bool

	viewport viewport.Model
	ready    bool
}

func newInspectModel(w *sim.World, counter string) inspectModel {
	m := inspectModel{world: w, counter: counter}
	m.collect()
	return m
}

func (m inspectModel) Init() tea.Cmd {
	return nil
}

// collect formats events logged since the last call.
func (m *inspectModel) collect() {
	log := m.world.EventLog()
	for _, e := range log[m.shown:] {
		line := trace.FormatEvent(e)
		switch {
		case e.Level <= logrus.ErrorLevel:
			line = styleFail.Render(line)
		case e.Level == logrus.WarnLevel:
			line = styleWarn.Render(line)
		case e.Level >= logrus.DebugLevel:
			line = styleDim.Render(line)
		}
		m.lines = append(m.lines, line)
	}
	m.shown = len(log)
	if m.ready {
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
	}
}

func (m *inspectModel) step(n int) {
	if m.deadlock {
		return
	}
	if m.world.MakeSteps(n) < n {
		m.deadlock = true
	}
	m.collect()
}

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// header and footer take one line each
		height := max(msg.Height-2, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
			m.collect()
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "s", "n":
			m.step(1)
			return m, nil
		case "r":
			m.step(runBatch)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m inspectModel) header() string {
	status := fmt.Sprintf("Seed %d  step %d  time %d  %s %d",
		m.world.Seed(), m.world.StepCount(), m.world.TimeElapsed(), m.counter, m.world.Counter(m.counter))
	if m.deadlock {
		status += "  " + styleFail.Render("deadlock")
	}
	return styleHeader.Render(status)
}

func (m inspectModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	footer := styleDim.Render(fmt.Sprintf("s/n: step  r: %d steps  up/down: scroll  q: quit", runBatch))
	return lipgloss.JoinVertical(lipgloss.Left, m.header(), m.viewport.View(), footer)
}

// inspectCmd opens an interactive stepper over one world
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Step a simulation interactively and watch its event log",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := newSimulation(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		// The alternate screen owns the terminal.
		s.console = nil

		var (
			w       *sim.World
			counter string
		)
		switch inspectExample {
		case "kv":
			w = kv.NewWorld(s.sc.Seed, s.sc.Params(s.sc.Seed, s.adversary), s.options()...)
			counter = "requests"
		case "echo":
			w = echo.NewWorld(s.sc.Seed, s.options()...)
			counter = "echoes"
		default:
			logrus.Fatalf("unknown example %q, expected kv or echo", inspectExample)
		}
		w.Start()

		p := tea.NewProgram(newInspectModel(w, counter), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seed %d -> digest: %d, steps: %d\n", s.sc.Seed, w.Stop(), w.StepCount())
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectExample, "example", "kv", "World to inspect (kv, echo)")
	rootCmd.AddCommand(inspectCmd)
}
