package lincheck

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matrix-sim/matrix/sim/history"
)

// PrintHistory renders h as a table, one call per row. Calls are described
// by m when it implements Describer.
func PrintHistory(w io.Writer, m any, h history.History) error {
	describe := func(c history.Call) string {
		return fmt.Sprintf("%s(%s) -> %s", c.Method, c.Arguments, c.Result)
	}
	if d, ok := m.(Describer); ok {
		describe = d.Describe
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "START", "END", "CALL", "LABELS")
	for i, c := range h {
		end := "lost"
		if c.IsCompleted() {
			end = strconv.FormatInt(int64(c.EndTime), 10)
		}
		t.Row(
			strconv.Itoa(i),
			strconv.FormatInt(int64(c.StartTime), 10),
			end,
			describe(c),
			strings.Join(c.Labels, ","),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
