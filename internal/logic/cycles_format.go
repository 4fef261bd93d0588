package logic

import (
	"fmt"
	"strings"
)

// TraceFormat is the only format Render accepts besides the empty string.
const TraceFormat = "T"

const (
	tracePointer = "> "
	traceIndent  = "  "
)

// Render formats the ledger. "" and TraceFormat produce the multi-line
// trace; anything else fails with ErrFormatNotSupported.
func (c *Cycles) Render(format string) (string, error) {
	if format != "" && format != TraceFormat {
		return "", fmt.Errorf("logic: render cycles as %q: %w", format, ErrFormatNotSupported)
	}
	return c.trace(), nil
}

// String returns the trace form.
func (c *Cycles) String() string { return c.trace() }

// trace writes one line per round:
//
//	> 0/10 #1 FreeGames [fg-1] <- #0 Base 1/1
//	  0/1 #0 Base
//
// The pointer marks the current round; a finished ledger ends with a
// pointer line of its own.
func (c *Cycles) trace() string {
	var b strings.Builder
	for i, s := range c.states {
		if i == c.current {
			b.WriteString(tracePointer)
		} else {
			b.WriteString(traceIndent)
		}
		fmt.Fprintf(&b, "%d/%d #%d %s", s.completed, s.total, s.id, s.stage)
		if s.cycleID != "" {
			fmt.Fprintf(&b, " [%s]", s.cycleID)
		}
		if t := c.Trigger(s); t != nil {
			fmt.Fprintf(&b, " <- #%d %s %d/%d", t.id, t.stage, t.completed, t.total)
		}
		b.WriteByte('\n')
	}
	if c.IsFinished() {
		b.WriteString(tracePointer)
		b.WriteString("(finished)\n")
	}
	return b.String()
}
