package trace

import (
	"fmt"
	"io"
	"strings"
)

// Separator starts every run appended to a shared log file.
var Separator = strings.Repeat("-", 80)

func limitWidth(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s
}

// FormatEvent renders e as one tab-separated line without a trailing newline.
//
//	[T 1234 | 56]	[info   ]	[Server-kv-1    ]	[Transport   ]	message
func FormatEvent(e LogEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[T %d | %d]\t[%-7s]\t[%-15s]\t[%-12s]",
		e.Time, e.Step,
		limitWidth(e.Level.String(), 7),
		limitWidth(e.Actor, 15),
		limitWidth(e.Component, 12))
	if e.TraceID != "" {
		fmt.Fprintf(&b, "\t[%s]", e.TraceID)
	}
	b.WriteString("\t")
	b.WriteString(e.Message)
	return b.String()
}

// WriteTextLog writes one line per event.
func WriteTextLog(w io.Writer, log EventLog) error {
	for _, e := range log {
		if _, err := fmt.Fprintln(w, FormatEvent(e)); err != nil {
			return err
		}
	}
	return nil
}
