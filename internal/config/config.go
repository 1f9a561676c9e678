// Package config resolves a campaign's fixed configuration from a YAML
// file, a .env overlay, environment variables, and finally CLI flags,
// in that increasing order of precedence — mirroring the teacher's
// internal/config layered-override style (YAML base, env overrides,
// applyDefaults backstop) generalized from the teacher's service
// config to the campaign's board/section/port-range surface from
// spec.md §6.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// ValidSections enumerates the valid -s/--section values.
var ValidSections = []string{
	"stack", "text", "rodata", "data", "bss", "heap", "init",
	"registers", "memory", "cache", "icache", "dcache", "l2cache",
}

// ValidVerbosity enumerates the valid -v/--verbosity values.
var ValidVerbosity = []string{"n", "c", "e", "s", "i", "a"}

// Config is the fully-resolved campaign configuration, the product of
// YAML defaults, .env secrets/paths, environment overrides, and CLI
// flags (spec.md §6's orchestrator CLI surface).
type Config struct {
	Filename      string  `yaml:"filename"`
	PortRangeBase int     `yaml:"port_range_base"`
	Injections    int     `yaml:"injections"`
	ErrorCount    int     `yaml:"error_count"`
	Section       string  `yaml:"section"`
	Board         string  `yaml:"board"`
	LogDir        string  `yaml:"log_dir"`
	NoLogging     bool    `yaml:"no_logging"`
	Verbosity     string  `yaml:"verbosity"`
	ForceBreak    string  `yaml:"force_break"`
	BreakCount    int     `yaml:"break_count"`
	BreakSleep    float64 `yaml:"break_sleep"`
	DebugCommands string  `yaml:"debug_commands"`

	PluginSO    string `yaml:"plugin_so"`
	PluginHost  string `yaml:"plugin_host"`
	MemoryMB    int    `yaml:"memory_mb"`
	EmulatorBin string `yaml:"emulator_bin"`
	GDBPath     string `yaml:"gdb_path"`
	Seed        int64  `yaml:"seed"`

	StatusAddr string `yaml:"status_addr"`
}

// applyDefaults fills zero-valued fields with the teacher's style of
// sensible baked-in defaults, run after YAML load and env overrides so
// an explicit zero from either source still wins... except it can't be
// told apart from "unset" for ints, matching the teacher's own
// getEnvInt("X", 0) convention of treating 0 as "not configured".
func (c *Config) applyDefaults() {
	if c.Injections == 0 {
		c.Injections = 1
	}
	if c.Section == "" {
		c.Section = "memory"
	}
	if c.Board == "" {
		c.Board = "pynq"
	}
	if c.LogDir == "" {
		c.LogDir = "."
	}
	if c.Verbosity == "" {
		c.Verbosity = "n"
	}
	if c.MemoryMB == 0 {
		c.MemoryMB = 128
	}
	if c.EmulatorBin == "" {
		c.EmulatorBin = "qemu-system-arm"
	}
	if c.GDBPath == "" {
		c.GDBPath = "gdb-multiarch"
	}
	if c.PluginHost == "" {
		c.PluginHost = "127.0.0.1"
	}
	if c.StatusAddr == "" {
		c.StatusAddr = ":9100"
	}
}

// Load reads the YAML file at path (if present; a missing file is not
// an error, matching the teacher's Get() warn-and-continue pattern),
// overlays a .env file (if present), applies environment overrides,
// and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: open %s: %w", path, err)
			}
			slog.Warn("config: no config file found, using defaults/env", "path", path)
		} else {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: .env overlay failed to load", "error", err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Filename = getEnv("COAST_FILENAME", c.Filename)
	c.Board = getEnv("COAST_BOARD", c.Board)
	c.Section = getEnv("COAST_SECTION", c.Section)
	c.LogDir = getEnv("COAST_LOG_DIR", c.LogDir)
	c.EmulatorBin = getEnv("COAST_EMULATOR_BIN", c.EmulatorBin)
	c.GDBPath = getEnv("COAST_GDB_PATH", c.GDBPath)
	c.PluginSO = getEnv("COAST_PLUGIN_SO", c.PluginSO)
	c.PluginHost = getEnv("COAST_PLUGIN_HOST", c.PluginHost)
	c.StatusAddr = getEnv("COAST_STATUS_ADDR", c.StatusAddr)

	if v := getEnvInt("COAST_PORT_RANGE_BASE", 0); v > 0 {
		c.PortRangeBase = v
	}
	if v := getEnvInt("COAST_INJECTIONS", 0); v > 0 {
		c.Injections = v
	}
	if v := getEnvInt("COAST_ERROR_COUNT", 0); v > 0 {
		c.ErrorCount = v
	}
	if v := getEnvInt("COAST_MEMORY_MB", 0); v > 0 {
		c.MemoryMB = v
	}
	if v := getEnvInt64("COAST_SEED", 0); v != 0 {
		c.Seed = v
	}
	c.NoLogging = getEnvBool("COAST_NO_LOGGING", c.NoLogging)
}

// BindFlags registers spec.md §6's CLI surface onto fs (a fresh
// *flag.FlagSet, so cmd/coastctl can call this before os.Args parsing
// and still support -h/--help text per flag), with cfg's
// post-YAML/env values as the flag defaults — CLI flags are the final,
// highest-precedence override layer.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Filename, "filename", c.Filename, "path to ELF binary (also -f)")
	fs.StringVar(&c.Filename, "f", c.Filename, "path to ELF binary")
	fs.IntVar(&c.PortRangeBase, "port-range", c.PortRangeBase, "inclusive start of a five-port reservation (also -p)")
	fs.IntVar(&c.PortRangeBase, "p", c.PortRangeBase, "inclusive start of a five-port reservation")
	fs.IntVar(&c.Injections, "t", c.Injections, "injection count")
	fs.IntVar(&c.ErrorCount, "errorCount", c.ErrorCount, "stop-after-N-errors trigger (also -e)")
	fs.IntVar(&c.ErrorCount, "e", c.ErrorCount, "stop-after-N-errors trigger")
	fs.StringVar(&c.Section, "section", c.Section, "injection section (also -s)")
	fs.StringVar(&c.Section, "s", c.Section, "injection section")
	fs.StringVar(&c.Board, "board", c.Board, "target board (also -d)")
	fs.StringVar(&c.Board, "d", c.Board, "target board")
	fs.StringVar(&c.LogDir, "log-dir", c.LogDir, "output log directory (also -l)")
	fs.StringVar(&c.LogDir, "l", c.LogDir, "output log directory")
	fs.BoolVar(&c.NoLogging, "no-logging", c.NoLogging, "suppress log output (also -q)")
	fs.BoolVar(&c.NoLogging, "q", c.NoLogging, "suppress log output")
	fs.StringVar(&c.Verbosity, "verbosity", c.Verbosity, "verbosity level n|c|e|s|i|a (also -v)")
	fs.StringVar(&c.Verbosity, "v", c.Verbosity, "verbosity level n|c|e|s|i|a")
	fs.StringVar(&c.ForceBreak, "forceBreak", c.ForceBreak, `forced injection: "set <addr> = <val>" (also -b)`)
	fs.StringVar(&c.ForceBreak, "b", c.ForceBreak, `forced injection: "set <addr> = <val>"`)
	fs.IntVar(&c.BreakCount, "breakCount", c.BreakCount, "forced injection breakpoint count (also -c)")
	fs.IntVar(&c.BreakCount, "c", c.BreakCount, "forced injection breakpoint count")
	fs.Float64Var(&c.BreakSleep, "breakSleep", c.BreakSleep, "forced injection sleep (also -z)")
	fs.Float64Var(&c.BreakSleep, "z", c.BreakSleep, "forced injection sleep")
	fs.StringVar(&c.DebugCommands, "debug-commands", c.DebugCommands, "file of raw debugger commands (also -x)")
	fs.StringVar(&c.DebugCommands, "x", c.DebugCommands, "file of raw debugger commands")
}

// Validate checks the CLI-surface invariants spec.md §6 names,
// returning the exit-code-(-1) class of error on failure.
func (c *Config) Validate() error {
	if c.Filename == "" {
		return fmt.Errorf("config: --filename/-f is required")
	}
	if _, err := os.Stat(c.Filename); err != nil {
		return fmt.Errorf("config: ELF file not found: %w", err)
	}
	if c.PortRangeBase <= 0 {
		return fmt.Errorf("config: --port-range/-p is required and must be positive")
	}
	if !contains(ValidSections, c.Section) {
		return fmt.Errorf("config: invalid section %q, must be one of %v", c.Section, ValidSections)
	}
	if c.Board != "pynq" && c.Board != "hifive1" {
		return fmt.Errorf("config: invalid board %q, must be pynq or hifive1", c.Board)
	}
	if c.Verbosity != "" && !contains(ValidVerbosity, c.Verbosity) {
		return fmt.Errorf("config: invalid verbosity %q, must be one of %v", c.Verbosity, ValidVerbosity)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}
