// Package notify implements ports.Notifier. Discord/webhook formatting is
// an external collaborator's concern; this package only carries
// the console notifier, which prints a one-line or tabular cycle digest.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/StaithValanthis/xsmom-bot/internal/ports"
)

// Console implements ports.Notifier, printing each cycle's digest to an
// io.Writer (stdout by default).
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier writing to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify prints the cycle summary. It never returns an error that would
// block the trading loop; failures are logged by the caller if Notify
// itself errors on the write.
func (c *Console) Notify(_ context.Context, summary ports.CycleSummary) error {
	if c.table {
		return c.printTable(summary)
	}
	return c.printCompact(summary)
}

func (c *Console) printCompact(s ports.CycleSummary) error {
	status := "ok"
	if s.Paused {
		status = "paused: " + s.PauseReason
	}
	_, err := fmt.Fprintf(c.out, "[%s] equity=$%.2f orders=%d fills=%d %s\n",
		time.Now().Format("15:04:05"), s.Equity, s.OrdersPlaced, s.Fills, status)
	return err
}

func (c *Console) printTable(s ports.CycleSummary) error {
	table := tablewriter.NewWriter(c.out)
	table.Header("Field", "Value")
	table.Append("Cycle", s.CycleAt)
	table.Append("Equity", fmt.Sprintf("$%.2f", s.Equity))
	table.Append("Orders placed", fmt.Sprintf("%d", s.OrdersPlaced))
	table.Append("Fills", fmt.Sprintf("%d", s.Fills))
	paused := "no"
	if s.Paused {
		paused = "yes: " + s.PauseReason
	}
	table.Append("Paused", paused)
	table.Render()
	return nil
}
