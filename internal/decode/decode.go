// Package decode implements the two line-oriented output decoders
// (component D): the guest-program stdout decoder, which classifies
// each line into a RunOutcome variant or a passthrough Info/Error/drop,
// and the debugger-log decoder, which filters interactive noise out of
// the agent's own log stream. Grounded on spec.md §4.D and
// original_source/resources/decoder.py's regex table and skip list;
// the regexp-per-pattern, first-match-wins dispatch follows the
// teacher's internal/protocol line-parsing style in frame.go/handlers.
package decode

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/byuccl/coast/internal/clock"
	"github.com/byuccl/coast/internal/model"
)

// Kind discriminates what a decoded guest line produced.
type Kind int

const (
	KindOutcome Kind = iota
	KindInfo
	KindError
	KindDropped
)

// DecodedLine is the result of classifying one line of guest stdout.
type DecodedLine struct {
	Kind    Kind
	Outcome model.Outcome // populated only when Kind == KindOutcome
	Text    string        // populated for KindInfo/KindError (message with prefix stripped)
}

var (
	runPattern = regexp.MustCompile(
		`^C:(\d+)\s+E:(\d+)\s+F:(\d+)\s+T:([\d.]+)(s|ms|us)\s*$`)
	assertPattern = regexp.MustCompile(
		`^Assert failed in file (\S+), line (\d+)\s*$`)
	abortPattern = regexp.MustCompile(
		`^(Data|Prefetch) abort with (.+)$`)
	overflowPattern = regexp.MustCompile(
		`^HALT: Task (\S+) overflowed its stack\.\s*$`)
)

// GuestLine classifies one line of guest-program stdout, matching
// spec.md §4.D's patterns in order; the first match wins.
func GuestLine(line string) DecodedLine {
	now := clock.Now()

	if m := runPattern.FindStringSubmatch(line); m != nil {
		core, _ := strconv.Atoi(m[1])
		errs, _ := strconv.Atoi(m[2])
		faults, _ := strconv.Atoi(m[3])
		seconds := runtimeSeconds(m[4], m[5])
		return DecodedLine{Kind: KindOutcome, Outcome: model.NewRunOutcome(now, core, errs, faults, seconds)}
	}
	if m := assertPattern.FindStringSubmatch(line); m != nil {
		lineNo, _ := strconv.Atoi(m[2])
		return DecodedLine{Kind: KindOutcome, Outcome: model.NewAssertionFailOutcome(now, m[1], lineNo)}
	}
	if m := abortPattern.FindStringSubmatch(line); m != nil {
		return DecodedLine{Kind: KindOutcome, Outcome: model.NewAbortOutcome(now, m[1]+" abort", m[2])}
	}
	if m := overflowPattern.FindStringSubmatch(line); m != nil {
		return DecodedLine{Kind: KindOutcome, Outcome: model.NewStackOverflowOutcome(now, m[1])}
	}
	if msg, ok := strings.CutPrefix(line, "ERROR: "); ok {
		return DecodedLine{Kind: KindError, Text: msg}
	}
	if msg, ok := strings.CutPrefix(line, "INFO: "); ok {
		return DecodedLine{Kind: KindInfo, Text: msg}
	}
	if strings.TrimSpace(line) == "" {
		return DecodedLine{Kind: KindDropped}
	}
	return DecodedLine{Kind: KindOutcome, Outcome: model.NewInvalidOutcome(now, line)}
}

// runtimeSeconds converts a decoded numeral+unit pair to seconds.
func runtimeSeconds(numeral, unit string) float64 {
	v, _ := strconv.ParseFloat(numeral, 64)
	switch unit {
	case "ms":
		return v / 1e3
	case "us":
		return v / 1e6
	default: // "s"
		return v
	}
}

// debuggerNoise is the fixed skip list from spec.md §4.D: the
// interactive prompt, source-line annotations, breakpoint creation
// notices, and "program terminated" notices.
var debuggerNoise = []*regexp.Regexp{
	regexp.MustCompile(`^\(gdb\)\s*$`),
	regexp.MustCompile(`^\d+\s+.*$`),              // source-line echo, "123    int x = 0;"
	regexp.MustCompile(`^Breakpoint \d+ at .*$`),  // breakpoint creation notice
	regexp.MustCompile(`^\[Inferior .*exited.*\]$`), // program terminated
	regexp.MustCompile(`^Continuing\.\s*$`),
}

// IsDebuggerNoise reports whether line matches the agent's fixed
// noise skip list.
func IsDebuggerNoise(line string) bool {
	for _, p := range debuggerNoise {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// DebuggerLine filters one line of the debugger agent's own log
// stream, returning (line, true) if it should be forwarded to the log
// queue, or ("", false) if it is noise to drop.
func DebuggerLine(line string) (string, bool) {
	if IsDebuggerNoise(line) {
		return "", false
	}
	return line, true
}
