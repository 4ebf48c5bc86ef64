package diagnostic

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/reboot"
)

func writeDevice(t *testing.T, root, serial, systemLog, ocppLog string) logset.DeviceLogs {
	t.Helper()

	folder := filepath.Join(root, serial)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}

	dev := logset.DeviceLogs{Serial: serial, Folder: folder}
	if systemLog != "" {
		path := filepath.Join(folder, "SystemLog")
		if err := os.WriteFile(path, []byte(systemLog), 0o644); err != nil {
			t.Fatal(err)
		}
		dev.SystemLogs = []string{path}
	}
	if ocppLog != "" {
		path := filepath.Join(folder, "OCPP16J_Log.csv")
		if err := os.WriteFile(path, []byte(ocppLog), 0o644); err != nil {
			t.Fatal(err)
		}
		dev.OCPPLogs = []string{path}
	}
	return dev
}

func TestAnalyzeDevice_EmptyLogs(t *testing.T) {
	dev := writeDevice(t, t.TempDir(), "KKB241600073WE", "", "")

	rep := NewAnalyzer().AnalyzeDevice(dev)
	if rep.Err != "" {
		t.Fatalf("Err = %q, want none", rep.Err)
	}
	if !rep.LowConfidence {
		t.Error("LowConfidence = false, want true with no anchors")
	}
	if rep.TotalIssues() != 0 {
		t.Errorf("TotalIssues() = %d, want 0", rep.TotalIssues())
	}
}

func TestAnalyzeDevice_FullPipeline(t *testing.T) {
	systemLog := strings.Join([]string{
		"Oct  1 10:00:00 evcs: Get RTC Info: 2025.10.01-10:00:00",
		"Oct  1 10:00:01 evcs: Fw2Ver: 1.2.3",
		"Oct  1 10:00:02 evcs: charging service ready",
		"Oct  1 14:00:02 evcs: resuming after silence",
	}, "\n")
	ocppLog := `Oct  1 10:05:00.000 TX [2,"m1","StartTransaction",{"connectorId":1,"meterStart":500000,"idTag":"TAG"}]`

	dev := writeDevice(t, t.TempDir(), "KKB241600073WE", systemLog, ocppLog)
	rep := NewAnalyzer().AnalyzeDevice(dev)

	if rep.LowConfidence {
		t.Error("LowConfidence = true, want false with an RTC anchor")
	}
	if rep.AnchorCount != 1 {
		t.Errorf("AnchorCount = %d, want 1", rep.AnchorCount)
	}
	if len(rep.Reboots) != 1 || rep.Reboots[0].Type != reboot.Unknown {
		t.Errorf("Reboots = %+v, want one unknown 4h gap", rep.Reboots)
	}
	if len(rep.Transactions.Lost) != 1 {
		t.Errorf("Lost = %d, want 1 unanswered start", len(rep.Transactions.Lost))
	}
	if rep.Firmware.Current != "1.2.3" {
		t.Errorf("Firmware.Current = %q, want 1.2.3", rep.Firmware.Current)
	}
}

func TestRun_PreservesDeviceOrder(t *testing.T) {
	root := t.TempDir()
	serials := []string{"AAA111111111AA", "BBB222222222BB", "CCC333333333CC"}

	devices := make([]logset.DeviceLogs, len(serials))
	for i, serial := range serials {
		devices[i] = writeDevice(t, root, serial,
			"Oct  1 10:00:00 evcs: Get RTC Info: 2025.10.01-10:00:00\n", "")
	}

	runner := NewRunner(NewAnalyzer())
	runner.Workers = 2
	reports := runner.Run(devices)

	if len(reports) != len(devices) {
		t.Fatalf("Run() = %d reports, want %d", len(reports), len(devices))
	}
	for i, rep := range reports {
		if rep.Serial != serials[i] {
			t.Errorf("reports[%d].Serial = %q, want %q", i, rep.Serial, serials[i])
		}
	}
}

func TestRun_SingleDeviceSequential(t *testing.T) {
	dev := writeDevice(t, t.TempDir(), "KKB241600073WE",
		"Oct  1 10:00:00 evcs: Get RTC Info: 2025.10.01-10:00:00\n", "")

	reports := NewRunner(NewAnalyzer()).Run([]logset.DeviceLogs{dev})
	if len(reports) != 1 || reports[0].Err != "" {
		t.Fatalf("Run() = %+v, want one clean report", reports)
	}
}

func TestRun_PanicIsolatedPerDevice(t *testing.T) {
	root := t.TempDir()
	devices := []logset.DeviceLogs{
		writeDevice(t, root, "AAA111111111AA", "", ""),
		writeDevice(t, root, "BBB222222222BB", "", ""),
	}

	// A nil analyzer makes every device panic; each must be captured on
	// its own report instead of aborting the batch.
	runner := NewRunner(nil)
	reports := runner.Run(devices)

	if len(reports) != 2 {
		t.Fatalf("Run() = %d reports, want 2", len(reports))
	}
	for i, rep := range reports {
		if rep.Err == "" {
			t.Errorf("reports[%d].Err empty, want captured failure", i)
		}
	}
}

func TestRun_FinalRenderShowsCompletion(t *testing.T) {
	root := t.TempDir()
	devices := []logset.DeviceLogs{
		writeDevice(t, root, "AAA111111111AA", "", ""),
		writeDevice(t, root, "BBB222222222BB", "", ""),
	}

	var last map[string]string
	runner := NewRunner(NewAnalyzer())
	runner.ProgressTick = time.Millisecond
	runner.Render = func(status map[string]string) { last = status }

	runner.Run(devices)

	if len(last) != 2 {
		t.Fatalf("final render had %d devices, want 2", len(last))
	}
	for serial, stage := range last {
		if stage != "done" {
			t.Errorf("final stage for %s = %q, want done", serial, stage)
		}
	}
}

func TestFormatStatus_SortedBySerial(t *testing.T) {
	lines := FormatStatus(map[string]string{
		"BBB222222222BB": "done",
		"AAA111111111AA": "analyzing",
	})
	want := []string{"AAA111111111AA: analyzing", "BBB222222222BB: done"}
	if len(lines) != 2 || lines[0] != want[0] || lines[1] != want[1] {
		t.Errorf("FormatStatus() = %v, want %v", lines, want)
	}
}
