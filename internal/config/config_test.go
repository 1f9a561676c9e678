package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Section)
	assert.Equal(t, "pynq", cfg.Board)
	assert.Equal(t, 1, cfg.Injections)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte("section: registers\nboard: hifive1\ninjections: 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "registers", cfg.Section)
	assert.Equal(t, "hifive1", cfg.Board)
	assert.Equal(t, 50, cfg.Injections)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte("section: registers\n"), 0o644))
	t.Setenv("COAST_SECTION", "cache")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cache", cfg.Section)
}

func TestValidateRequiresFilenameAndPortRange(t *testing.T) {
	cfg := &Config{Board: "pynq", Section: "memory"}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "filename")

	elf := filepath.Join(t.TempDir(), "fw.elf")
	require.NoError(t, os.WriteFile(elf, []byte{0x7f, 'E', 'L', 'F'}, 0o644))
	cfg = &Config{Filename: elf, Board: "pynq", Section: "memory"}
	assert.ErrorContains(t, cfg.Validate(), "port-range")
}

func TestValidateRejectsUnknownBoard(t *testing.T) {
	elf := filepath.Join(t.TempDir(), "fw.elf")
	require.NoError(t, os.WriteFile(elf, []byte{0x7f, 'E', 'L', 'F'}, 0o644))

	cfg := &Config{Filename: elf, PortRangeBase: 9000, Board: "esp32", Section: "memory"}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "board")
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	elf := filepath.Join(t.TempDir(), "fw.elf")
	require.NoError(t, os.WriteFile(elf, []byte{0x7f, 'E', 'L', 'F'}, 0o644))

	cfg := &Config{Filename: elf, PortRangeBase: 9000, Board: "pynq", Section: "memory", Verbosity: "n"}
	assert.NoError(t, cfg.Validate())
}

func TestBindFlagsOverridesLoadedValue(t *testing.T) {
	cfg := &Config{Section: "memory", Board: "pynq"}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-s", "cache"}))
	assert.Equal(t, "cache", cfg.Section)
}
