package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/config"
	"github.com/byuccl/coast/internal/model"
)

func TestIsCacheSection(t *testing.T) {
	for _, s := range []string{"cache", "icache", "dcache", "l2cache"} {
		assert.True(t, isCacheSection(s), s)
	}
	for _, s := range []string{"text", "stack", "registers", "memory"} {
		assert.False(t, isCacheSection(s), s)
	}
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, "ERROR", verbosityLevel("n").String())
	assert.Equal(t, "DEBUG", verbosityLevel("a").String())
	assert.Equal(t, "DEBUG", verbosityLevel("i").String())
	assert.Equal(t, "INFO", verbosityLevel("c").String())
}

func TestPersistedBaseName(t *testing.T) {
	stamp := time.Date(2026, 7, 29, 14, 5, 0, 0, time.UTC)
	got := persistedBaseName("pynq", "/bench/dhrystone.elf", stamp)
	assert.Equal(t, "pynq_dhrystone_2026-07-29_14-05", got)
}

func TestParseForcedInjectionsEmpty(t *testing.T) {
	cfg := &config.Config{}
	forced, err := parseForcedInjections(cfg)
	require.NoError(t, err)
	assert.Nil(t, forced)
}

func TestParseForcedInjectionsParsesTargetAndIteration(t *testing.T) {
	cfg := &config.Config{ForceBreak: "set 0x1000 = 0xdeadbeef", BreakCount: 5}
	forced, err := parseForcedInjections(cfg)
	require.NoError(t, err)
	require.Len(t, forced, 1)
	assert.Equal(t, 5, forced[0].Iteration)
	assert.Equal(t, uint32(0xdeadbeef), forced[0].Value)
}

func TestParseForcedInjectionsDefaultsToAlwaysActive(t *testing.T) {
	cfg := &config.Config{ForceBreak: "set 0x1000 = 0x1"}
	forced, err := parseForcedInjections(cfg)
	require.NoError(t, err)
	require.Len(t, forced, 1)
	assert.Equal(t, model.AlwaysActive, forced[0].Iteration)
}

func TestAsCliErrorUnwrapsWrappedCliError(t *testing.T) {
	base := &cliError{errors.New("bad board")}
	wrapped := errorf(base)

	var ce *cliError
	assert.True(t, asCliError(wrapped, &ce))
	assert.Equal(t, base, ce)
}

func TestAsCliErrorFalseForPlainError(t *testing.T) {
	var ce *cliError
	assert.False(t, asCliError(errors.New("plain"), &ce))
}

func errorf(err error) error {
	return &wrappedErr{err}
}

type wrappedErr struct{ err error }

func (w *wrappedErr) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrappedErr) Unwrap() error { return w.err }
