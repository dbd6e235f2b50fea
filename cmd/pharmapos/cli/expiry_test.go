package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/pharmapos/internal/inventory"
)

type stubReporter struct {
	entries []inventory.ExpiryEntry
	err     error
	window  time.Duration
}

func (s *stubReporter) ExpiryWindow() time.Duration {
	return 90 * 24 * time.Hour
}

func (s *stubReporter) Expiring(ctx context.Context, window time.Duration) ([]inventory.ExpiryEntry, error) {
	s.window = window
	return s.entries, s.err
}

func TestReportCommandJSON(t *testing.T) {
	reporter := &stubReporter{entries: []inventory.ExpiryEntry{
		{LotID: "L7", Name: "Amoxicilina", Expiration: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), DaysLeft: -3, Expired: true, Stock: 4},
		{LotID: "L9", Name: "Paracetamol", Expiration: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), DaysLeft: 25, Stock: 12},
	}}
	cli, err := NewExpiryCLI(reporter)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ExpiryOptions{Days: 30, JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Equal(t, 10, code)
	require.Empty(t, stderr.String())
	require.Equal(t, 30*24*time.Hour, reporter.window)

	var summary ExpirySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 30, summary.WindowDays)
	require.Equal(t, 1, summary.Expired)
	require.Len(t, summary.Entries, 2)
}

func TestReportCommandJSONDefaultWindow(t *testing.T) {
	reporter := &stubReporter{}
	cli, err := NewExpiryCLI(reporter)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ExpiryOptions{JSONOutput: true, Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, code)
	require.Zero(t, reporter.window)

	var summary ExpirySummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, 90, summary.WindowDays)
	require.Zero(t, summary.Expired)
}

func TestReportCommandHumanClean(t *testing.T) {
	reporter := &stubReporter{entries: []inventory.ExpiryEntry{
		{LotID: "L9", Name: "Paracetamol", Expiration: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), DaysLeft: 25, Stock: 12},
	}}
	cli, err := NewExpiryCLI(reporter)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ExpiryOptions{Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, code)
	require.Zero(t, reporter.window)
	require.Contains(t, stdout.String(), "Paracetamol")
	require.Contains(t, stdout.String(), "2025-03-01")
	require.NotContains(t, stdout.String(), "EXPIRED")
}

func TestReportCommandEmpty(t *testing.T) {
	cli, err := NewExpiryCLI(&stubReporter{})
	require.NoError(t, err)
	stdout := new(bytes.Buffer)
	require.Zero(t, cli.ReportCommand(context.Background(), ExpiryOptions{Days: 7, Stdout: stdout}))
	require.Contains(t, stdout.String(), "No lots expire")
}

func TestReportCommandFailures(t *testing.T) {
	cli, err := NewExpiryCLI(&stubReporter{err: inventory.ErrSourceUnavailable})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	require.Equal(t, 1, cli.ReportCommand(context.Background(), ExpiryOptions{Days: 7, Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "expiry:")

	stderr.Reset()
	require.Equal(t, 1, cli.ReportCommand(context.Background(), ExpiryOptions{Days: -1, Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "--days")

	_, err = NewExpiryCLI(nil)
	require.Error(t, err)
}
