package model

// TargetKind discriminates the InjectionTarget sum type.
type TargetKind int

const (
	TargetRegister TargetKind = iota
	TargetMemoryWord
	TargetCacheWord
)

// InjectionTarget is the sum type spec.md §3 describes: one of
// Register(name), MemoryWord(addr), or CacheWord(cache, row, block, word).
// Exactly one branch of fields is meaningful, selected by Kind.
type InjectionTarget struct {
	Kind TargetKind

	// TargetRegister
	RegisterName string

	// TargetMemoryWord
	Address       uint32
	SectionLabel  string // which MemoryMap section, or "cache"/"registers"

	// TargetCacheWord
	CacheName string
	Row       int
	Block     int
	Word      int
	InTag     bool
	Dirty     bool
}

// RegisterTarget builds a register-targeted InjectionTarget.
func RegisterTarget(name string) InjectionTarget {
	return InjectionTarget{Kind: TargetRegister, RegisterName: name, SectionLabel: "registers"}
}

// MemoryWord builds a memory-targeted InjectionTarget.
func MemoryWord(section string, addr uint32) InjectionTarget {
	return InjectionTarget{Kind: TargetMemoryWord, Address: addr, SectionLabel: section}
}

// CacheWord builds a cache-targeted InjectionTarget.
func CacheWord(cache string, row, block, word int, inTag, dirty bool) InjectionTarget {
	return InjectionTarget{
		Kind: TargetCacheWord, CacheName: cache, Row: row, Block: block, Word: word,
		InTag: inTag, Dirty: dirty, SectionLabel: "cache",
	}
}

// AddressLabel returns the textual location used as InjectionLog.Address:
// the register name, the cache name for a cache word, or the hex
// address, matching the original tool's
// "set <addr> = <val>" string vocabulary.
func (t InjectionTarget) AddressLabel() string {
	switch t.Kind {
	case TargetRegister:
		return t.RegisterName
	case TargetCacheWord:
		return t.CacheName
	default:
		return hexUint32(t.Address)
	}
}

func hexUint32(v uint32) string {
	const hexdigits = "0123456789abcdef"
	buf := [10]byte{'0', 'x'}
	for i := 0; i < 8; i++ {
		shift := uint(28 - 4*i)
		buf[2+i] = hexdigits[(v>>shift)&0xF]
	}
	return string(buf[:])
}

// ForcedInjection is the typed form of the original's raw
// "set ADDR = VAL" scripting strings, parsed once at startup per
// Design Notes §9.
type ForcedInjection struct {
	Iteration int // serial number this applies to, or -2 for "always"
	Target    InjectionTarget
	Value     uint32
}

// AlwaysActive matches BreakInjection's -2 sentinel: apply on every
// iteration rather than a specific one.
const AlwaysActive = -2

// Inactive matches BreakInjection's -1 sentinel: never apply.
const Inactive = -1

// MatchesIteration reports whether this forced injection should fire
// for the given 0-based injection serial number.
func (f ForcedInjection) MatchesIteration(serial int) bool {
	return f.Iteration == AlwaysActive || f.Iteration == serial
}
