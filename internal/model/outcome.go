package model

import (
	"encoding/json"
	"fmt"
)

// Outcome is the RunOutcome tagged union from spec.md §3: every guest
// run or watchdog event classifies into exactly one of these six
// variants. Every variant carries a formatted timestamp (see
// internal/clock for the format).
//
// Implemented as an interface: the variants are built by internal/decode,
// serialized through their struct json tags and decoded back by
// UnmarshalOutcomeDict in this file, and type-switched by
// internal/eventlog's precedence rule and internal/campaign's
// outcomeKind.
type Outcome interface {
	isOutcome()
	Timestamp() string
	fmt.Stringer
}

type common struct {
	FTime string `json:"timestamp"`
}

func (c common) Timestamp() string { return c.FTime }

// RunOutcome is a successful, non-crashing guest run that printed its
// structured "C: .. E: .. F: .. T: .." line.
type RunOutcome struct {
	common
	Core    int     `json:"core"`
	Errors  int     `json:"errors"`
	Faults  int     `json:"faults"`
	Runtime float64 `json:"runtime"`
}

func (RunOutcome) isOutcome() {}
func (r RunOutcome) String() string {
	return fmt.Sprintf("%s Done. Core: %d Errors: %d Faults: %d Runtime: %.6f",
		r.FTime, r.Core, r.Errors, r.Faults, r.Runtime)
}

// IsSuccess reports a clean run: no errors, no faults.
func (r RunOutcome) IsSuccess() bool { return r.Errors == 0 && r.Faults == 0 }

// HasError reports whether the guest reported any error.
func (r RunOutcome) HasError() bool { return r.Errors != 0 }

// HasFault reports whether the guest reported any tolerated fault.
func (r RunOutcome) HasFault() bool { return r.Faults != 0 }

// TimeoutOutcome is produced when the debugger agent's watchdog fires,
// or when the orchestrator gives up waiting for a stop event.
type TimeoutOutcome struct {
	common
	Message string `json:"timeout"`
	Trap    bool   `json:"trap"`
	PC      uint32 `json:"-"`
}

func (TimeoutOutcome) isOutcome() {}
func (t TimeoutOutcome) String() string { return t.FTime + " " + t.Message }

// InvalidOutcome is produced when a guest-output line matches none of
// the recognized patterns (DecoderReject, per the error taxonomy,
// counted neither as an error nor a success).
type InvalidOutcome struct {
	common
	Raw string `json:"invalid"`
}

func (InvalidOutcome) isOutcome() {}
func (i InvalidOutcome) String() string { return i.FTime + " " + i.Raw }

// AssertionFailOutcome is produced by a guest "Assert failed in file
// F, line L" message.
type AssertionFailOutcome struct {
	common
	File   string `json:"file"`
	Line   int    `json:"line"`
	Errors int    `json:"errors"`
}

func (AssertionFailOutcome) isOutcome() {}
func (a AssertionFailOutcome) String() string {
	return fmt.Sprintf("%s Assertion failed in file %s, line %d", a.FTime, a.File, a.Line)
}

// AbortOutcome is produced by a guest "Data abort with M" or "Prefetch
// abort with M" message.
type AbortOutcome struct {
	common
	Kind    string `json:"type"`
	Message string `json:"message"`
	Errors  int    `json:"errors"`
}

func (AbortOutcome) isOutcome() {}
func (a AbortOutcome) String() string {
	return fmt.Sprintf("%s %s abort with %s", a.FTime, a.Kind, a.Message)
}

// StackOverflowOutcome is produced by a guest "HALT: Task T overflowed
// its stack." message.
type StackOverflowOutcome struct {
	common
	Task   string `json:"task"`
	Errors int    `json:"errors"`
}

func (StackOverflowOutcome) isOutcome() {}
func (s StackOverflowOutcome) String() string {
	return fmt.Sprintf("%s HALT: Task %s overflowed its stack.", s.FTime, s.Task)
}

// NewOutcome constructors set Errors=1 where the original always does
// (so the field "exists so it can be parsed correctly", in the
// original's own words).

func NewRunOutcome(ftime string, core, errs, faults int, runtime float64) RunOutcome {
	return RunOutcome{common: common{ftime}, Core: core, Errors: errs, Faults: faults, Runtime: runtime}
}

func NewTimeoutOutcome(ftime, msg string, trap bool, pc uint32) TimeoutOutcome {
	return TimeoutOutcome{common: common{ftime}, Message: msg, Trap: trap, PC: pc}
}

func NewInvalidOutcome(ftime, raw string) InvalidOutcome {
	return InvalidOutcome{common: common{ftime}, Raw: raw}
}

func NewAssertionFailOutcome(ftime, file string, line int) AssertionFailOutcome {
	return AssertionFailOutcome{common: common{ftime}, File: file, Line: line, Errors: 1}
}

func NewAbortOutcome(ftime, kind, msg string) AbortOutcome {
	return AbortOutcome{common: common{ftime}, Kind: kind, Message: msg, Errors: 1}
}

func NewStackOverflowOutcome(ftime, task string) StackOverflowOutcome {
	return StackOverflowOutcome{common: common{ftime}, Task: task, Errors: 1}
}

// OutcomeErrors reports the error count an outcome contributes to the
// campaign's process-wide error counter. Non-Run variants that carry
// Errors=1 (AssertionFail/Abort/StackOverflow) count as one error;
// Timeout and Invalid contribute zero by themselves (Timeout's "error"
// is the injection itself being recorded, tallied by the orchestrator).
func OutcomeErrors(o Outcome) int {
	switch v := o.(type) {
	case RunOutcome:
		return v.Errors
	case AssertionFailOutcome:
		return v.Errors
	case AbortOutcome:
		return v.Errors
	case StackOverflowOutcome:
		return v.Errors
	default:
		return 0
	}
}

// UnmarshalOutcomeDict decodes an outcome from its JSON-object
// representation using the discriminator keys the original Python
// InjectionLog.FromDict switches on: "core", "line", "invalid",
// "timeout", "message", "task".
func UnmarshalOutcomeDict(raw json.RawMessage) (Outcome, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch {
	case has(probe, "core"):
		var r RunOutcome
		return r, json.Unmarshal(raw, &r)
	case has(probe, "line"):
		var a AssertionFailOutcome
		return a, json.Unmarshal(raw, &a)
	case has(probe, "invalid"):
		var i InvalidOutcome
		return i, json.Unmarshal(raw, &i)
	case has(probe, "timeout"):
		var t TimeoutOutcome
		return t, json.Unmarshal(raw, &t)
	case has(probe, "message"):
		var a AbortOutcome
		return a, json.Unmarshal(raw, &a)
	case has(probe, "task"):
		var s StackOverflowOutcome
		return s, json.Unmarshal(raw, &s)
	default:
		return nil, fmt.Errorf("could not deserialize outcome: unrecognized discriminator keys")
	}
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}
