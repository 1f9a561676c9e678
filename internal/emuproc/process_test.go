package emuproc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byuccl/coast/internal/boards"
)

func TestBoolToInt(t *testing.T) {
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func TestLookPathMissingBinary(t *testing.T) {
	err := LookPath("definitely-not-a-real-emulator-binary")
	assert.Error(t, err)
}

func TestProcessNotAliveBeforeStart(t *testing.T) {
	p := New(boards.Pynq, Ports{GDB: 1, Mon: 2, Debug: 3, Python: 4, Plugin: 5}, nil)
	assert.False(t, p.Alive())
	assert.False(t, p.HasPlugin())
}
