// Package boards holds the static, read-only board capability tables
// the orchestrator and emulator wrapper consult: machine/CPU tokens for
// the emulator command line, cache topology, and forbidden memory
// ranges. This is "board config" / "benchmark table" data spec.md
// treats as an external contract (§4.B, §4.C, §6) without specifying
// its representation; grounded on original_source/resources/benchmarks.py
// (referenced from mem.py's benchmarks.getCacheInfo and interface.py's
// benchmarks.getScript/getMachine/getCpu) and resources/mem.py's
// MemHierarchy, which gates cache setup to the "pynq" board only.
package boards

import (
	"fmt"

	"github.com/byuccl/coast/internal/model"
)

// Board is one target board's static capability table.
type Board struct {
	Name    string
	Machine string // QEMU -M token
	CPU     string // QEMU -cpu token
	// BreakpointLocation is the source line/function the debugger
	// agent installs breakpoint #1 at (the pre/post-workload marker
	// used for baseline timing and for detecting overshoot).
	BreakpointLocation string
	Caches             *model.CacheTopology
	Forbidden          []model.ForbiddenRange
}

// Pynq is the default board: a Cortex-A9-class target on QEMU's
// "xilinx-zynq-a9" machine, the only board with a populated
// MemHierarchy in the original tool.
var Pynq = Board{
	Name:               "pynq",
	Machine:            "xilinx-zynq-a9",
	CPU:                "cortex-a9",
	BreakpointLocation: "main.c:main",
	Caches: model.NewCacheTopology(
		model.CacheData{Name: "icache", CacheSize: 32 * 1024, Associativity: 4, BlockSize: 32, WordSize: 4, Policy: model.PolicyRoundRobin},
		model.CacheData{Name: "dcache", CacheSize: 32 * 1024, Associativity: 4, BlockSize: 32, WordSize: 4, Policy: model.PolicyRoundRobin},
		model.CacheData{Name: "l2cache", CacheSize: 512 * 1024, Associativity: 8, BlockSize: 32, WordSize: 4, Policy: model.PolicyRandom},
	),
	Forbidden: model.DefaultForbiddenRanges,
}

// Hifive1 is carried in the data model (see internal/model/registers.go)
// but, matching original_source/supervisor.py's CLI validation exactly,
// is rejected as unsupported here — it never had a populated
// MemHierarchy in the original tool either.
var Hifive1 = Board{
	Name:               "hifive1",
	Machine:            "sifive_e",
	CPU:                "e31",
	BreakpointLocation: "main.c:main",
	Forbidden:          nil,
}

// Supported boards, in the order spec.md §6's -d/--board flag lists them.
var Supported = []string{"pynq", "hifive1"}

// Lookup returns the board table by name, or an error if the board is
// not one of Supported. Hifive1 is accepted by Lookup (present in
// Supported so usage help and flag parsing match spec.md §6) but
// supervisor-equivalent CLI validation layers (cmd/coastctl) reject it
// before a campaign starts, matching the original's explicit rejection.
func Lookup(name string) (Board, error) {
	switch name {
	case "pynq":
		return Pynq, nil
	case "hifive1":
		return Hifive1, nil
	default:
		return Board{}, fmt.Errorf("unsupported board %q (choices: %v)", name, Supported)
	}
}

// IsUnsupported reports whether a board, while a recognized name, has no
// working emulator/cache backing (currently only hifive1).
func IsUnsupported(name string) bool {
	return name == "hifive1"
}
