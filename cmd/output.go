package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/matrix-sim/matrix/examples/kv"
	"github.com/matrix-sim/matrix/sim/lincheck"
	"github.com/matrix-sim/matrix/sim/trace"
)

var (
	colorSuccess = lipgloss.Color("#43BF6D")
	colorError   = lipgloss.Color("#FF5F5F")
	colorSubtext = lipgloss.Color("#777777")
	colorWarn    = lipgloss.Color("#E5C07B")
	colorAccent  = lipgloss.Color("#7D56F4")

	styleOK   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleFail = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleDim  = lipgloss.NewStyle().Foreground(colorSubtext)
)

func writePcap(path string, r *kv.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating pcap file: %w", err)
	}
	if err := trace.WritePcap(f, r.Hosts, r.Frames); err != nil {
		f.Close()
		return fmt.Errorf("writing pcap: %w", err)
	}
	return f.Close()
}

func printKVHistory(w io.Writer, r *kv.Report) {
	fmt.Fprintf(w, "History (%d calls, %s):\n", len(r.History), r.Check.Verdict)
	if err := lincheck.PrintHistory(w, lincheck.KVModel{}, r.History); err != nil {
		fmt.Fprintln(w, styleFail.Render(err.Error()))
	}
}

func printSummary(w io.Writer, r *kv.Report) {
	s := trace.Summarize(r.Log, r.Frames)
	fmt.Fprintln(w, styleDim.Render(fmt.Sprintf("events: %d (warnings: %d), frames: %d, payload: %d bytes",
		s.Events, s.Warnings, s.Frames, s.PayloadBytes)))
}
