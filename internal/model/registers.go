package model

// Register describes one entry in a target ISA's register file: the
// textual name used on the debugger wire, and the numeric index the
// original tooling used for Renode/GDB register lookups (kept for
// parity with the board tables in internal/boards; unused by the
// GDB/MI-based agent, which addresses registers by name).
type Register struct {
	Name  string
	Index int
}

// RegisterSet is an immutable, named collection of registers for one
// target architecture.
type RegisterSet struct {
	Board     string
	Registers []Register
}

// ARMCortexA9Registers is the Cortex-A9 register file (the "pynq"
// board), including the floating point registers.
var ARMCortexA9Registers = RegisterSet{
	Board: "pynq",
	Registers: []Register{
		{"r0", 0}, {"r1", 1}, {"r2", 2}, {"r3", 3}, {"r4", 4}, {"r5", 5},
		{"r6", 6}, {"r7", 7}, {"r8", 8}, {"r9", 9}, {"r10", 10}, {"r11", 11},
		{"r12", 12}, {"sp", 13}, {"lr", 14}, {"pc", 15}, {"cpsr", 25},
		{"fpscr", 16}, {"fpsid", 17}, {"fpexc", 18},
		{"s0", 32}, {"s1", 33}, {"s2", 34}, {"s3", 35}, {"s4", 36}, {"s5", 37},
		{"s6", 38}, {"s7", 39}, {"s8", 40}, {"s9", 41}, {"s10", 42}, {"s11", 43},
		{"s12", 44}, {"s13", 45}, {"s14", 46}, {"s15", 47}, {"s16", 48},
		{"s17", 49}, {"s18", 50}, {"s19", 51}, {"s20", 52}, {"s21", 53},
		{"s22", 54}, {"s23", 55}, {"s24", 56}, {"s25", 57}, {"s26", 58},
		{"s27", 59}, {"s28", 60}, {"s29", 61}, {"s30", 62}, {"s31", 63},
	},
}

// RiscvRegisters is the RISC-V register file (the "hifive1" board).
// spec.md §6 lists hifive1 as a board choice, but supervisor.py rejects
// it as unsupported at CLI validation time; the register set is kept
// here for completeness of the data model. internal/boards has a
// hifive1 entry, and cmd/coastctl rejects it via boards.IsUnsupported.
var RiscvRegisters = RegisterSet{
	Board: "hifive1",
	Registers: []Register{
		{"ra", 1}, {"sp", 2}, {"gp", 3}, {"tp", 4}, {"pc", 32},
		{"t0", 5}, {"t1", 6}, {"t2", 7}, {"t3", 28}, {"t4", 29}, {"t5", 30}, {"t6", 31},
		{"s0", 8}, {"s1", 9}, {"s2", 18}, {"s3", 19}, {"s4", 20}, {"s5", 21},
		{"s6", 22}, {"s7", 23}, {"s8", 24}, {"s9", 25}, {"s10", 26}, {"s11", 27},
		{"a0", 10}, {"a1", 11}, {"a2", 12}, {"a3", 13}, {"a4", 14}, {"a5", 15},
		{"a6", 16}, {"a7", 17},
	},
}

// Lookup finds a register by name, returning ok=false if absent.
func (rs RegisterSet) Lookup(name string) (Register, bool) {
	for _, r := range rs.Registers {
		if r.Name == name {
			return r, true
		}
	}
	return Register{}, false
}

// RegisterSetForBoard returns the register file for a board name.
func RegisterSetForBoard(board string) RegisterSet {
	if board == "hifive1" {
		return RiscvRegisters
	}
	return ARMCortexA9Registers
}
