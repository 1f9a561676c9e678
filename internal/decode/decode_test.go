package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/model"
)

func TestGuestLineRun(t *testing.T) {
	d := GuestLine("C:4 E:0 F:1 T:250ms")
	require.Equal(t, KindOutcome, d.Kind)
	run, ok := d.Outcome.(model.RunOutcome)
	require.True(t, ok)
	assert.Equal(t, 4, run.Core)
	assert.Equal(t, 0, run.Errors)
	assert.Equal(t, 1, run.Faults)
	assert.InDelta(t, 0.25, run.Runtime, 1e-9)
}

func TestGuestLineRunMicroseconds(t *testing.T) {
	d := GuestLine("C:1 E:0 F:0 T:500us")
	run := d.Outcome.(model.RunOutcome)
	assert.InDelta(t, 0.0005, run.Runtime, 1e-9)
}

func TestGuestLineAssertionFail(t *testing.T) {
	d := GuestLine("Assert failed in file main.c, line 42")
	require.Equal(t, KindOutcome, d.Kind)
	a := d.Outcome.(model.AssertionFailOutcome)
	assert.Equal(t, "main.c", a.File)
	assert.Equal(t, 42, a.Line)
	assert.Equal(t, 1, a.Errors)
}

func TestGuestLineAbort(t *testing.T) {
	d := GuestLine("Data abort with unaligned access")
	a := d.Outcome.(model.AbortOutcome)
	assert.Equal(t, "Data abort", a.Kind)
	assert.Equal(t, "unaligned access", a.Message)
}

func TestGuestLineStackOverflow(t *testing.T) {
	d := GuestLine("HALT: Task IDLE overflowed its stack.")
	s := d.Outcome.(model.StackOverflowOutcome)
	assert.Equal(t, "IDLE", s.Task)
}

func TestGuestLineErrorInfoPassthrough(t *testing.T) {
	assert.Equal(t, DecodedLine{Kind: KindError, Text: "socket closed"}, GuestLine("ERROR: socket closed"))
	assert.Equal(t, DecodedLine{Kind: KindInfo, Text: "boot complete"}, GuestLine("INFO: boot complete"))
}

func TestGuestLineEmptyDropped(t *testing.T) {
	assert.Equal(t, KindDropped, GuestLine("   ").Kind)
}

func TestGuestLineFallbackInvalid(t *testing.T) {
	d := GuestLine("garbled nonsense")
	inv := d.Outcome.(model.InvalidOutcome)
	assert.Equal(t, "garbled nonsense", inv.Raw)
}

func TestDebuggerLineNoiseFiltered(t *testing.T) {
	_, ok := DebuggerLine("(gdb)")
	assert.False(t, ok)
	_, ok = DebuggerLine("Breakpoint 1 at 0x1000: file main.c, line 10.")
	assert.False(t, ok)
}

func TestDebuggerLinePassesThroughSignal(t *testing.T) {
	line, ok := DebuggerLine("Program received signal SIGTRAP")
	assert.True(t, ok)
	assert.Equal(t, "Program received signal SIGTRAP", line)
}
