package diagnostic

import (
	"time"

	"github.com/gridwatch/evaudit/pkg/connstate"
	"github.com/gridwatch/evaudit/pkg/firmware"
	"github.com/gridwatch/evaudit/pkg/ledger"
	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/ocpp"
	"github.com/gridwatch/evaudit/pkg/reboot"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

// Analyzer runs the full detector pipeline for one device: timeline
// reconstruction, then the four detectors over the shared read-only
// timeline.
type Analyzer struct {
	recon      *timeline.Reconstructor
	classifier *reboot.Classifier
	ledger     ledger.Ledger
	machine    connstate.Machine
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithReconstructor replaces the default timeline reconstructor.
func WithReconstructor(r *timeline.Reconstructor) AnalyzerOption {
	return func(a *Analyzer) {
		a.recon = r
	}
}

// WithClassifier replaces the default reboot classifier.
func WithClassifier(c *reboot.Classifier) AnalyzerOption {
	return func(a *Analyzer) {
		a.classifier = c
	}
}

// WithMeterFloor overrides the cumulative-register floor used by the
// transaction ledger.
func WithMeterFloor(floor int64) AnalyzerOption {
	return func(a *Analyzer) {
		a.ledger.Floor = floor
	}
}

// NewAnalyzer creates an Analyzer with default detector settings.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		recon:      timeline.New(),
		classifier: reboot.NewClassifier(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeDevice reads the device's log files and produces its report.
// Total function: a device with empty or unreadable logs yields a valid
// report carrying warnings and empty findings.
func (a *Analyzer) AnalyzeDevice(dev logset.DeviceLogs) *Report {
	started := time.Now()

	rep := &Report{
		Serial: dev.Serial,
		Folder: dev.Folder,
	}

	systemLines, sysWarnings := logset.ReadLines(dev.SystemLogs)
	ocppLines, ocppWarnings := logset.ReadLines(dev.OCPPLogs)
	rep.Warnings = append(rep.Warnings, sysWarnings...)
	rep.Warnings = append(rep.Warnings, ocppWarnings...)

	// One timeline per device; every detector dates lines through it so
	// year inference cannot diverge between them.
	tl := a.recon.Reconstruct(systemLines)
	rep.LowConfidence = tl.LowConfidence
	rep.AnchorCount = len(tl.Anchors)

	activity := ocpp.BuildActivityIndex(lineTexts(ocppLines))

	rep.Reboots = a.classifier.Classify(tl, activity)
	rep.Transactions = a.ledger.Analyze(ocppLines, tl)
	rep.Connectors = a.machine.Analyze(ocppLines, tl)
	rep.Firmware = firmware.Build(systemLines, tl)

	rep.Elapsed = time.Since(started)
	return rep
}

func lineTexts(lines []logset.Line) []string {
	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.Text
	}
	return texts
}
