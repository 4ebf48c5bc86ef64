// Package connstate validates OCPP connector status transitions and
// flags illegal states and anomalous-but-legal transition shapes.
package connstate

import (
	"fmt"
	"sort"
	"time"

	"github.com/gridwatch/evaudit/pkg/logset"
	"github.com/gridwatch/evaudit/pkg/ocpp"
	"github.com/gridwatch/evaudit/pkg/timeline"
)

// transitionRetention bounds the transition log kept for reporting;
// invalid and suspicious findings are retained in full.
const transitionRetention = 50

// lowCurrentThreshold is the IEC 61851-1 Mode 3 minimum: below 6 A the
// vehicle must stop charging, which shows up as suspicious transitions.
const lowCurrentThreshold = 6.0

// validStates is the closed OCPP 1.6 connector status set.
var validStates = map[string]bool{
	"Available": true, "Preparing": true, "Charging": true,
	"SuspendedEVSE": true, "SuspendedEV": true, "Finishing": true,
	"Reserved": true, "Unavailable": true, "Faulted": true,
}

// suspiciousShapes are legal transitions that indicate anomalies.
var suspiciousShapes = map[[2]string]struct {
	pattern string
	concern string
}{
	{"Available", "Charging"}: {
		pattern: "Available -> Charging (skipped Preparing)",
		concern: "vehicle connection may not have been detected",
	},
	{"Charging", "Available"}: {
		pattern: "Charging -> Available (skipped Finishing)",
		concern: "abrupt session termination, possible disconnect or error",
	},
	{"Charging", "Preparing"}: {
		pattern: "Charging -> Preparing (session restart)",
		concern: "unexpected session restart, often caused by an externally imposed low-current limit rather than a device fault",
	},
	{"SuspendedEVSE", "Preparing"}: {
		pattern: "SuspendedEVSE -> Preparing (abnormal resume)",
		concern: "charger not resuming; check for sub-6A charging profiles",
	},
}

// Transition is one observed status change.
type Transition struct {
	At        time.Time
	Connector int
	From      string
	To        string
}

// InvalidState is a status outside the OCPP 1.6 set.
type InvalidState struct {
	At        time.Time
	Connector int
	State     string
	Reason    string
}

// Suspicious is a legal but anomalous transition.
type Suspicious struct {
	At        time.Time
	Connector int
	Pattern   string
	Concern   string
}

// LowCurrentProfile is a SetChargingProfile limit below 6 A; these
// commonly explain the suspicious suspend/restart shapes.
type LowCurrentProfile struct {
	At        time.Time
	Connector int
	Limit     float64
}

// Result is the state-machine output for one device.
type Result struct {
	// Transitions holds the most recent transitions, capped at 50.
	Transitions []Transition

	Invalid    []InvalidState
	Suspicious []Suspicious

	LowCurrentProfiles []LowCurrentProfile
	ZeroCurrentCount   int

	// FinalStates maps connector id to its last validated status.
	FinalStates map[int]string
}

// TotalIssues counts invalid and suspicious findings.
func (r *Result) TotalIssues() int {
	return len(r.Invalid) + len(r.Suspicious)
}

// Machine replays StatusNotification messages per connector.
type Machine struct{}

// Analyze replays the protocol log and returns validated transitions and
// findings. Total function: no lines yields an empty result.
func (m *Machine) Analyze(lines []logset.Line, tl *timeline.Timeline) *Result {
	res := &Result{FinalStates: make(map[int]string)}

	var parser ocpp.Parser
	for _, line := range lines {
		frame, ok := parser.ParseLine(line.Text)
		if !ok || frame.Type != ocpp.Call {
			continue
		}

		at, _ := tl.ResolveStamp(line.Text)
		switch frame.Action {
		case "StatusNotification":
			m.handleStatus(res, frame, at)
		case "SetChargingProfile":
			m.handleChargingProfile(res, frame, at)
		}
	}

	return res
}

func (m *Machine) handleStatus(res *Result, frame ocpp.Frame, at time.Time) {
	if frame.Payload == nil {
		return
	}
	connector := frame.Payload.GetInt("connectorId")
	status := string(frame.Payload.GetStringBytes("status"))
	if status == "" {
		return
	}

	// Unrecognized states are recorded as violations but never adopted as
	// the current state, so later suspicious-pattern checks compare
	// against the last state that actually meant something.
	if !validStates[status] {
		res.Invalid = append(res.Invalid, InvalidState{
			At:        at,
			Connector: connector,
			State:     status,
			Reason:    fmt.Sprintf("invalid OCPP state: %s", status),
		})
		return
	}

	from, seen := res.FinalStates[connector]
	if !seen {
		from = "Unknown"
	}

	res.Transitions = append(res.Transitions, Transition{
		At:        at,
		Connector: connector,
		From:      from,
		To:        status,
	})
	if len(res.Transitions) > transitionRetention {
		res.Transitions = res.Transitions[len(res.Transitions)-transitionRetention:]
	}

	if shape, ok := suspiciousShapes[[2]string{from, status}]; ok {
		res.Suspicious = append(res.Suspicious, Suspicious{
			At:        at,
			Connector: connector,
			Pattern:   shape.pattern,
			Concern:   shape.concern,
		})
	}

	res.FinalStates[connector] = status
}

// handleChargingProfile extracts every schedule-period limit and flags
// those under the 6 A threshold.
func (m *Machine) handleChargingProfile(res *Result, frame ocpp.Frame, at time.Time) {
	if frame.Payload == nil {
		return
	}
	connector := frame.Payload.GetInt("connectorId")

	periods := frame.Payload.GetArray("csChargingProfiles", "chargingSchedule", "chargingSchedulePeriod")
	for _, period := range periods {
		limit := period.GetFloat64("limit")
		if !period.Exists("limit") || limit >= lowCurrentThreshold {
			continue
		}
		res.LowCurrentProfiles = append(res.LowCurrentProfiles, LowCurrentProfile{
			At:        at,
			Connector: connector,
			Limit:     limit,
		})
		if limit < 1.0 {
			res.ZeroCurrentCount++
		}
	}
}

// Connectors lists the connector ids seen, in order.
func (r *Result) Connectors() []int {
	ids := make([]int, 0, len(r.FinalStates))
	for id := range r.FinalStates {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
