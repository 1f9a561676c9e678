package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaultsAndOverrides(t *testing.T) {
	a, err := parseArgs([]string{"pynq", "/tmp/src", "3000", "3001"})
	require.NoError(t, err)
	assert.Equal(t, "pynq", a.board)
	assert.Equal(t, "/tmp/src", a.sourceDir)
	assert.Equal(t, 3000, a.gdbPort)
	assert.Equal(t, 3001, a.pythonPort)
	assert.Equal(t, 2, a.numInjects)
	assert.Equal(t, 0, a.startNum)
	assert.False(t, a.debugCmds)

	a, err = parseArgs([]string{"pynq", "/tmp/src", "3000", "3001", "-n", "50", "-b", "10", "-c"})
	require.NoError(t, err)
	assert.Equal(t, 50, a.numInjects)
	assert.Equal(t, 10, a.startNum)
	assert.True(t, a.debugCmds)
}

func TestParseArgsRejectsTooFewPositionals(t *testing.T) {
	_, err := parseArgs([]string{"pynq", "/tmp/src"})
	assert.Error(t, err)
}

func TestParseArgsRejectsUnknownFlag(t *testing.T) {
	_, err := parseArgs([]string{"pynq", "/tmp/src", "3000", "3001", "--bogus"})
	assert.Error(t, err)
}

func TestResolveSourceFilePicksSoleRegularFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dhrystone.elf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	got, err := resolveSourceFile(dir)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolveSourceFileRejectsEmptyDir(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveSourceFile(dir)
	assert.Error(t, err)
}

func TestResolveSourceFileRejectsMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.elf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.elf"), []byte("x"), 0o644))

	_, err := resolveSourceFile(dir)
	assert.Error(t, err)
}
