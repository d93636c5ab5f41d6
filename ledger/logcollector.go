package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// logCollector is a slog.Handler recording program log lines for a receipt.
type logCollector struct {
	mu    *sync.Mutex
	lines *[]string
	max   int
}

func newLogCollector(max int) *logCollector {
	return &logCollector{mu: &sync.Mutex{}, lines: new([]string), max: max}
}

func (c *logCollector) Enabled(context.Context, slog.Level) bool { return true }

func (c *logCollector) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString("Program log: ")
	sb.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value.Any())
		return true
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.max > 0 && len(*c.lines) == c.max:
		*c.lines = append(*c.lines, "Log truncated")
	case c.max > 0 && len(*c.lines) > c.max:
	default:
		*c.lines = append(*c.lines, sb.String())
	}
	return nil
}

// Handler-level attributes identify the transaction for the operator log and
// are left out of the program log.
func (c *logCollector) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *logCollector) WithGroup(string) slog.Handler      { return c }

func (c *logCollector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), (*c.lines)...)
}
