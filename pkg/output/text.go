package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gridwatch/evaudit/pkg/diagnostic"
)

// TextFormatter formats batches as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the batch as text.
func (f *TextFormatter) Format(ctx context.Context, batch *Batch, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(batch, w)
	}
	return f.formatFull(batch, w)
}

func (f *TextFormatter) formatQuiet(batch *Batch, w io.Writer) error {
	fmt.Fprintf(w, "evaudit: %d devices analyzed, %d with issues, %d failed, %d total issues\n",
		batch.Summary.DevicesAnalyzed,
		batch.Summary.DevicesWithIssues,
		batch.Summary.DevicesFailed,
		batch.Summary.TotalIssues)
	return nil
}

func (f *TextFormatter) formatFull(batch *Batch, w io.Writer) error {
	fmt.Fprintln(w, "=== EV Charger Diagnostic Report ===")
	fmt.Fprintln(w)

	for _, rep := range batch.Devices {
		f.formatDevice(rep, w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d devices analyzed, %d with issues, %d failed, %d total issues\n",
		batch.Summary.DevicesAnalyzed,
		batch.Summary.DevicesWithIssues,
		batch.Summary.DevicesFailed,
		batch.Summary.TotalIssues)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Log directory: %s\n", batch.Metadata.LogDir)
		fmt.Fprintf(w, "Duration: %s\n", batch.Metadata.Duration.Round(time.Millisecond))
	}

	return nil
}

func (f *TextFormatter) formatDevice(rep *diagnostic.Report, w io.Writer) {
	fmt.Fprintf(w, "[DEVICE] %s\n", rep.Serial)

	if rep.Err != "" {
		fmt.Fprintf(w, "  Error: %s\n\n", rep.Err)
		return
	}

	if rep.LowConfidence {
		fmt.Fprintln(w, "  Warning: no RTC anchors found; dates inferred from the current year")
	}
	for _, warning := range rep.Warnings {
		fmt.Fprintf(w, "  Warning: %s\n", warning)
	}

	f.formatReboots(rep, w)
	f.formatTransactions(rep, w)
	f.formatConnectors(rep, w)
	f.formatFirmware(rep, w)

	if rep.TotalIssues() == 0 {
		fmt.Fprintln(w, "  No issues detected")
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatReboots(rep *diagnostic.Report, w io.Writer) {
	if len(rep.Reboots) == 0 {
		return
	}
	fmt.Fprintf(w, "  Reboot events: %d\n", len(rep.Reboots))
	for _, ev := range rep.Reboots {
		fmt.Fprintf(w, "  - %s: %s gap, %s -> %s\n",
			ev.Type,
			ev.Gap.Round(time.Second),
			ev.Before.Format("Jan _2 15:04:05"),
			ev.After.Format("Jan _2 15:04:05"))
		for _, evidence := range ev.Evidence {
			fmt.Fprintf(w, "    %s\n", evidence)
		}
		if f.opts.Verbose {
			fmt.Fprintf(w, "    Before: %s\n", ev.BeforeLine)
			fmt.Fprintf(w, "    After:  %s\n", ev.AfterLine)
		}
	}
}

func (f *TextFormatter) formatTransactions(rep *diagnostic.Report, w io.Writer) {
	tx := rep.Transactions
	if tx == nil || tx.TotalIssues() == 0 {
		return
	}

	fmt.Fprintf(w, "  Transaction findings: %d\n", tx.TotalIssues())
	for _, lost := range tx.Lost {
		fmt.Fprintf(w, "  - Lost transaction id: start request %s never answered\n", lost.MessageID)
	}
	if n := len(tx.InvalidIDs); n > 0 {
		fmt.Fprintf(w, "  - Invalid transaction ids: %d occurrence(s)\n", n)
	}
	for _, inc := range tx.Incomplete {
		fmt.Fprintf(w, "  - Incomplete transactions %v: %s with session(s) still open\n",
			inc.TransactionIDs, strings.ReplaceAll(inc.Cause, "_", " "))
	}
	if tx.Meter.NonCumulativeCount > 0 {
		fmt.Fprintf(w, "  - Meter register: %s\n", tx.Meter.NonCumulativeNote)
	}
	for _, dec := range tx.Meter.Decreasing {
		fmt.Fprintf(w, "  - Meter register decreased: %d -> %d (transaction %d)\n",
			dec.Previous, dec.Value, dec.Index)
	}
}

func (f *TextFormatter) formatConnectors(rep *diagnostic.Report, w io.Writer) {
	cs := rep.Connectors
	if cs == nil || (cs.TotalIssues() == 0 && len(cs.LowCurrentProfiles) == 0) {
		return
	}

	fmt.Fprintf(w, "  Connector findings: %d\n", cs.TotalIssues())
	for _, inv := range cs.Invalid {
		fmt.Fprintf(w, "  - Connector %d: %s\n", inv.Connector, inv.Reason)
	}
	for _, sus := range cs.Suspicious {
		fmt.Fprintf(w, "  - Connector %d: %s\n", sus.Connector, sus.Pattern)
		if f.opts.Verbose {
			fmt.Fprintf(w, "    Concern: %s\n", sus.Concern)
		}
	}
	if n := len(cs.LowCurrentProfiles); n > 0 {
		fmt.Fprintf(w, "  - Low-current charging profiles: %d (%d at zero)\n",
			n, cs.ZeroCurrentCount)
	}
}

func (f *TextFormatter) formatFirmware(rep *diagnostic.Report, w io.Writer) {
	fw := rep.Firmware
	if fw == nil || fw.Current == "" {
		return
	}

	fmt.Fprintf(w, "  Firmware: %s", fw.Current)
	if fw.Previous != "" {
		fmt.Fprintf(w, " (previously %s)", fw.Previous)
	}
	if fw.MCUVersion != "" {
		fmt.Fprintf(w, ", MCU %s", fw.MCUVersion)
	}
	fmt.Fprintln(w)

	if f.opts.Verbose {
		for _, change := range fw.Changes {
			fmt.Fprintf(w, "    %s: %s\n", change.At.Format("2006-01-02 15:04:05"), change.Version)
		}
	}
}
