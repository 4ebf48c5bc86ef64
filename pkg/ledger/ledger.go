// Package ledger tracks the OCPP transaction lifecycle across a device's
// protocol logs and surfaces billing-critical data-loss findings.
package ledger

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/ocpp"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

// State is a transaction's lifecycle position. Transitions only move
// forward: Pending -> Active -> Closed or Lost.
type State string

// Lifecycle states.
const (
	Pending State = "Pending"
	Active  State = "Active"
	Closed  State = "Closed"
	Lost    State = "Lost"
)

// MeterFloor is the lifetime-energy floor in register units; a cumulative
// lifetime register exceeds this after meaningful device use.
const MeterFloor = 100_000

// rawLimit truncates retained raw lines for readability.
const rawLimit = 200

// invalidIDPattern matches the sentinel transactionId values a charger
// emits once it has lost the real id.
var invalidIDPattern = regexp.MustCompile(`"transactionId"\s*:\s*(-1|0|null)\b`)

// Transaction is one charging session's billing record.
type Transaction struct {
	ID        int
	MessageID string
	Start     time.Time
	Stop      time.Time
	MeterStart int64
	MeterStop  int64
	HasStop    bool
	State      State
}

// LostStart is a StartTransaction request whose message id never received
// a response by end of stream.
type LostStart struct {
	MessageID string
	At        time.Time
	Raw       string
}

// InvalidID is one occurrence of a sentinel transactionId value.
type InvalidID struct {
	At    time.Time
	Value string
	Raw   string
}

// Incomplete reports transactions still open when the device's own
// transaction memory was wiped.
type Incomplete struct {
	At             time.Time
	Cause          string // "hard_reset" or "reboot"
	TransactionIDs []int
	Raw            string
}

// MeterDecrease is a meterStart lower than its predecessor's; a truly
// cumulative register is monotonic.
type MeterDecrease struct {
	Index    int
	Previous int64
	Value    int64
}

// MeterAudit summarizes the meter-register continuity checks.
type MeterAudit struct {
	TransactionsAnalyzed int
	MaxMeterStart        int64
	NonCumulativeCount   int
	NonCumulativeNote    string
	Decreasing           []MeterDecrease
}

// Findings is the complete transaction-lifecycle result for one device.
type Findings struct {
	Transactions []*Transaction
	Lost         []LostStart
	InvalidIDs   []InvalidID

	HardResetCount int
	SoftResetCount int
	Incomplete     []Incomplete

	Meter MeterAudit
}

// TotalIssues counts the findings that indicate billing data loss.
func (f *Findings) TotalIssues() int {
	return len(f.Lost) + len(f.InvalidIDs) + len(f.Incomplete) +
		f.Meter.NonCumulativeCount + len(f.Meter.Decreasing)
}

// Ledger analyzes protocol logs. The zero value uses the default meter
// floor.
type Ledger struct {
	// Floor overrides MeterFloor when positive.
	Floor int64
}

// Analyze runs the transaction lifecycle over the protocol log lines in
// order. It is a total function: no lines yields empty findings.
func (l *Ledger) Analyze(lines []logset.Line, tl *timeline.Timeline) *Findings {
	floor := l.Floor
	if floor <= 0 {
		floor = MeterFloor
	}

	f := &Findings{}

	var parser ocpp.Parser
	pendingOrder := []string{}
	pending := map[string]*Transaction{}
	active := map[int]*Transaction{}
	var meterStarts []int64

	for _, line := range lines {
		at, _ := tl.ResolveStamp(line.Text)

		// Sentinel ids are flagged wherever they appear, independent of
		// frame correlation.
		if m := invalidIDPattern.FindStringSubmatch(line.Text); m != nil {
			f.InvalidIDs = append(f.InvalidIDs, InvalidID{
				At:    at,
				Value: m[1],
				Raw:   truncate(line.Text),
			})
		}

		frame, ok := parser.ParseLine(line.Text)
		if !ok {
			continue
		}

		switch frame.Type {
		case ocpp.Call:
			l.handleCall(f, frame, at, line.Text, pending, &pendingOrder, active, &meterStarts)
		case ocpp.CallResult:
			handleResult(frame, pending, &pendingOrder, active)
		}
	}

	// Requests still unanswered at end of stream lost their ids.
	for _, msgID := range pendingOrder {
		tx := pending[msgID]
		tx.State = Lost
		f.Lost = append(f.Lost, LostStart{
			MessageID: msgID,
			At:        tx.Start,
			Raw:       fmt.Sprintf("StartTransaction request %s never answered", msgID),
		})
	}

	f.Meter = auditMeter(meterStarts, floor)
	return f
}

func (l *Ledger) handleCall(f *Findings, frame ocpp.Frame, at time.Time, raw string,
	pending map[string]*Transaction, pendingOrder *[]string,
	active map[int]*Transaction, meterStarts *[]int64) {

	switch frame.Action {
	case "StartTransaction":
		tx := &Transaction{
			MessageID:  frame.ID,
			Start:      at,
			MeterStart: frame.Payload.GetInt64("meterStart"),
			State:      Pending,
		}
		f.Transactions = append(f.Transactions, tx)
		pending[frame.ID] = tx
		*pendingOrder = append(*pendingOrder, frame.ID)
		*meterStarts = append(*meterStarts, tx.MeterStart)

	case "StopTransaction":
		txID := frame.Payload.GetInt("transactionId")
		if tx, ok := active[txID]; ok {
			tx.Stop = at
			tx.MeterStop = frame.Payload.GetInt64("meterStop")
			tx.HasStop = true
			tx.State = Closed
			delete(active, txID)
		}

	case "Reset":
		switch string(frame.Payload.GetStringBytes("type")) {
		case "Hard":
			f.HardResetCount++
			if len(active) > 0 {
				f.Incomplete = append(f.Incomplete, Incomplete{
					At:             at,
					Cause:          "hard_reset",
					TransactionIDs: activeIDs(active),
					Raw:            truncate(raw),
				})
			}
		case "Soft":
			// A soft reset queues StopTransaction before rebooting;
			// recorded but not a data-loss finding.
			f.SoftResetCount++
		}

	case "BootNotification":
		// The charger's transaction memory is gone after a reboot;
		// anything still open never got its StopTransaction.
		if len(active) > 0 {
			f.Incomplete = append(f.Incomplete, Incomplete{
				At:             at,
				Cause:          "reboot",
				TransactionIDs: activeIDs(active),
				Raw:            truncate(raw),
			})
			for _, tx := range active {
				tx.State = Lost
			}
		}
		for id := range active {
			delete(active, id)
		}
	}
}

// handleResult confirms a pending start when its response carries a
// transaction identifier.
func handleResult(frame ocpp.Frame, pending map[string]*Transaction,
	pendingOrder *[]string, active map[int]*Transaction) {

	tx, ok := pending[frame.ID]
	if !ok || frame.Payload == nil || !frame.Payload.Exists("transactionId") {
		return
	}

	delete(pending, frame.ID)
	for i, id := range *pendingOrder {
		if id == frame.ID {
			*pendingOrder = append((*pendingOrder)[:i], (*pendingOrder)[i+1:]...)
			break
		}
	}

	tx.State = Active
	txID := frame.Payload.GetInt("transactionId")
	if txID > 0 {
		tx.ID = txID
		active[txID] = tx
	}
}

func auditMeter(meterStarts []int64, floor int64) MeterAudit {
	audit := MeterAudit{TransactionsAnalyzed: len(meterStarts)}
	if len(meterStarts) == 0 {
		return audit
	}

	for _, v := range meterStarts {
		if v > audit.MaxMeterStart {
			audit.MaxMeterStart = v
		}
	}

	if audit.MaxMeterStart < floor {
		audit.NonCumulativeCount = len(meterStarts)
		audit.NonCumulativeNote = fmt.Sprintf(
			"all meterStart values below %d register units (max=%d); likely session energy instead of a cumulative register",
			floor, audit.MaxMeterStart)
	}

	for i := 1; i < len(meterStarts); i++ {
		if meterStarts[i] < meterStarts[i-1] {
			audit.Decreasing = append(audit.Decreasing, MeterDecrease{
				Index:    i,
				Previous: meterStarts[i-1],
				Value:    meterStarts[i],
			})
		}
	}
	return audit
}

func activeIDs(active map[int]*Transaction) []int {
	ids := make([]int, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func truncate(s string) string {
	if len(s) > rawLimit {
		return s[:rawLimit]
	}
	return s
}
