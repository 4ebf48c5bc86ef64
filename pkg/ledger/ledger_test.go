package ledger

import (
	"fmt"
	"testing"

	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

func mkLines(texts ...string) []logset.Line {
	lines := make([]logset.Line, len(texts))
	for i, text := range texts {
		lines[i] = logset.Line{Text: text, Source: "OCPP16J_Log.csv", Num: i + 1}
	}
	return lines
}

func emptyTimeline() *timeline.Timeline {
	return &timeline.Timeline{}
}

func startCall(msgID string, meterStart int64) string {
	return fmt.Sprintf(`Oct 24 10:00:00.000 TX [2,"%s","StartTransaction",{"connectorId":1,"meterStart":%d,"idTag":"TAG"}]`, msgID, meterStart)
}

func startResult(msgID string, txID int) string {
	return fmt.Sprintf(`Oct 24 10:00:01.000 RX [3,"%s",{"transactionId":%d,"idTagInfo":{"status":"Accepted"}}]`, msgID, txID)
}

func stopCall(msgID string, txID int, meterStop int64) string {
	return fmt.Sprintf(`Oct 24 11:00:00.000 TX [2,"%s","StopTransaction",{"transactionId":%d,"meterStop":%d}]`, msgID, txID, meterStop)
}

func TestAnalyze_EmptyInput(t *testing.T) {
	var l Ledger
	f := l.Analyze(nil, emptyTimeline())
	if f.TotalIssues() != 0 {
		t.Errorf("TotalIssues() = %d, want 0", f.TotalIssues())
	}
}

func TestAnalyze_ConfirmedTransactionLifecycle(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 500_000),
		startResult("m1", 7),
		stopCall("m2", 7, 512_000),
	), emptyTimeline())

	if len(f.Lost) != 0 {
		t.Errorf("Lost = %d, want 0", len(f.Lost))
	}
	if len(f.Transactions) != 1 {
		t.Fatalf("Transactions = %d, want 1", len(f.Transactions))
	}
	tx := f.Transactions[0]
	if tx.State != Closed {
		t.Errorf("State = %q, want %q", tx.State, Closed)
	}
	if tx.ID != 7 || tx.MeterStart != 500_000 || tx.MeterStop != 512_000 {
		t.Errorf("tx = %+v, want id 7 meter 500000..512000", tx)
	}
}

func TestAnalyze_UnansweredStartCountedOnce(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 500_000),
		`Oct 24 10:05:00.000 TX [2,"m9","Heartbeat",{}]`,
		`Oct 24 10:05:01.000 RX [3,"m9",{}]`,
	), emptyTimeline())

	if len(f.Lost) != 1 {
		t.Fatalf("Lost = %d, want exactly 1", len(f.Lost))
	}
	if f.Lost[0].MessageID != "m1" {
		t.Errorf("Lost[0].MessageID = %q, want %q", f.Lost[0].MessageID, "m1")
	}
	if f.Transactions[0].State != Lost {
		t.Errorf("State = %q, want %q", f.Transactions[0].State, Lost)
	}
}

func TestAnalyze_InvalidSentinelIDs(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		`Oct 24 10:10:00.000 TX [2,"m3","MeterValues",{"connectorId":1,"transactionId":-1,"meterValue":[]}]`,
		`Oct 24 10:11:00.000 TX [2,"m4","MeterValues",{"connectorId":1,"transactionId":0,"meterValue":[]}]`,
		`Oct 24 10:12:00.000 TX [2,"m5","MeterValues",{"connectorId":1,"transactionId":null,"meterValue":[]}]`,
	), emptyTimeline())

	if len(f.InvalidIDs) != 3 {
		t.Fatalf("InvalidIDs = %d, want 3", len(f.InvalidIDs))
	}
	wantValues := []string{"-1", "0", "null"}
	for i, inv := range f.InvalidIDs {
		if inv.Value != wantValues[i] {
			t.Errorf("InvalidIDs[%d].Value = %q, want %q", i, inv.Value, wantValues[i])
		}
	}
}

func TestAnalyze_HardResetWithActiveTransaction(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 500_000),
		startResult("m1", 7),
		`Oct 24 10:30:00.000 RX [2,"m2","Reset",{"type":"Hard"}]`,
	), emptyTimeline())

	if f.HardResetCount != 1 {
		t.Errorf("HardResetCount = %d, want 1", f.HardResetCount)
	}
	if len(f.Incomplete) != 1 {
		t.Fatalf("Incomplete = %d, want exactly 1", len(f.Incomplete))
	}
	inc := f.Incomplete[0]
	if inc.Cause != "hard_reset" {
		t.Errorf("Cause = %q, want %q", inc.Cause, "hard_reset")
	}
	if len(inc.TransactionIDs) != 1 || inc.TransactionIDs[0] != 7 {
		t.Errorf("TransactionIDs = %v, want [7]", inc.TransactionIDs)
	}
}

func TestAnalyze_SoftResetNotFlagged(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 500_000),
		startResult("m1", 7),
		`Oct 24 10:30:00.000 RX [2,"m2","Reset",{"type":"Soft"}]`,
	), emptyTimeline())

	if f.SoftResetCount != 1 {
		t.Errorf("SoftResetCount = %d, want 1", f.SoftResetCount)
	}
	if len(f.Incomplete) != 0 {
		t.Errorf("Incomplete = %d, want 0 for a soft reset", len(f.Incomplete))
	}
}

func TestAnalyze_BootNotificationClearsActiveSet(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 500_000),
		startResult("m1", 7),
		`Oct 24 10:40:00.000 TX [2,"m2","BootNotification",{"chargePointModel":"AC MAX"}]`,
		`Oct 24 10:41:00.000 TX [2,"m3","BootNotification",{"chargePointModel":"AC MAX"}]`,
	), emptyTimeline())

	// The second boot sees an empty set: only one finding.
	if len(f.Incomplete) != 1 {
		t.Fatalf("Incomplete = %d, want 1", len(f.Incomplete))
	}
	if f.Incomplete[0].Cause != "reboot" {
		t.Errorf("Cause = %q, want %q", f.Incomplete[0].Cause, "reboot")
	}
	if f.Transactions[0].State != Lost {
		t.Errorf("State = %q, want %q after reboot", f.Transactions[0].State, Lost)
	}
}

func TestAnalyze_MeterAuditNonCumulativeAndDecreasing(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 50_000),
		startResult("m1", 1),
		startCall("m2", 52_000),
		startResult("m2", 2),
		startCall("m3", 51_000),
		startResult("m3", 3),
	), emptyTimeline())

	if f.Meter.TransactionsAnalyzed != 3 {
		t.Errorf("TransactionsAnalyzed = %d, want 3", f.Meter.TransactionsAnalyzed)
	}
	if f.Meter.NonCumulativeCount != 3 {
		t.Errorf("NonCumulativeCount = %d, want 3", f.Meter.NonCumulativeCount)
	}
	if len(f.Meter.Decreasing) != 1 {
		t.Fatalf("Decreasing = %d, want 1", len(f.Meter.Decreasing))
	}
	dec := f.Meter.Decreasing[0]
	if dec.Index != 2 || dec.Previous != 52_000 || dec.Value != 51_000 {
		t.Errorf("Decreasing[0] = %+v, want index 2, 52000 -> 51000", dec)
	}
}

func TestAnalyze_CumulativeRegistersPass(t *testing.T) {
	var l Ledger
	f := l.Analyze(mkLines(
		startCall("m1", 150_000),
		startResult("m1", 1),
		startCall("m2", 162_000),
		startResult("m2", 2),
	), emptyTimeline())

	if f.Meter.NonCumulativeCount != 0 {
		t.Errorf("NonCumulativeCount = %d, want 0", f.Meter.NonCumulativeCount)
	}
	if len(f.Meter.Decreasing) != 0 {
		t.Errorf("Decreasing = %d, want 0", len(f.Meter.Decreasing))
	}
}
