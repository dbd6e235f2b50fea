package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
)

// ExpiryReporter produces the expiration report.
type ExpiryReporter interface {
	Expiring(ctx context.Context, window time.Duration) ([]inventory.ExpiryEntry, error)
	ExpiryWindow() time.Duration
}

// ExpiryCLI prints lots that expire within a window.
type ExpiryCLI struct {
	reporter ExpiryReporter
}

// NewExpiryCLI constructs the helper.
func NewExpiryCLI(reporter ExpiryReporter) (*ExpiryCLI, error) {
	if reporter == nil {
		return nil, errors.New("expiry cli: reporter required")
	}
	return &ExpiryCLI{reporter: reporter}, nil
}

// ExpiryOptions defines available flags for the expiry command.
type ExpiryOptions struct {
	Days       int
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ExpirySummary describes the JSON response for expiry.
type ExpirySummary struct {
	WindowDays int                     `json:"window_days"`
	Expired    int                     `json:"expired"`
	Entries    []inventory.ExpiryEntry `json:"entries"`
}

// ReportCommand runs the report. Zero days uses the configured window. It
// exits with 10 when any lot with stock is already expired.
func (c *ExpiryCLI) ReportCommand(ctx context.Context, opts ExpiryOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Days < 0 || opts.Days > 3650 {
		_, _ = fmt.Fprintf(opts.Stderr, "expiry: --days must be within 0..3650, got %d\n", opts.Days)
		return 1
	}
	entries, err := c.reporter.Expiring(ctx, time.Duration(opts.Days)*24*time.Hour)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "expiry: %v\n", err)
		return 1
	}
	expired := 0
	for _, e := range entries {
		if e.Expired {
			expired++
		}
	}
	if opts.JSONOutput {
		days := opts.Days
		if days == 0 {
			days = int(c.reporter.ExpiryWindow() / (24 * time.Hour))
		}
		summary := ExpirySummary{WindowDays: days, Expired: expired, Entries: entries}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "expiry: encode json: %v\n", err)
			return 1
		}
	} else {
		renderExpiryHuman(opts.Stdout, entries)
	}
	if expired > 0 {
		return 10
	}
	return 0
}

func renderExpiryHuman(out io.Writer, entries []inventory.ExpiryEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No lots expire within the window.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "LOT\tPRODUCT\tEXPIRES\tDAYS\tSTOCK\tSTATUS")
	for _, e := range entries {
		status := "expiring"
		if e.Expired {
			status = "EXPIRED"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.LotID, e.Name, e.Expiration.Format("2006-01-02"), e.DaysLeft, e.Stock, status)
	}
	_ = tw.Flush()
}
