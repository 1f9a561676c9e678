package model

import "math/rand"

// MemorySection is one named region of the target's address space, as
// recovered from the ELF section headers by the out-of-scope symbol
// table reader. Immutable after load.
type MemorySection struct {
	Name  string
	Start uint32
	Size  uint32
}

// RandomAddress returns a uniformly random address within the section.
func (s MemorySection) RandomAddress(r *rand.Rand) uint32 {
	if s.Size == 0 {
		return s.Start
	}
	return s.Start + uint32(r.Int63n(int64(s.Size)))
}

// MemoryMap is the ordered set of standard ELF sections the injector is
// allowed to target: .init, .text, .rodata, .data, .bss, .stack, .heap.
// Built once from the out-of-scope symbol table reader and never
// mutated afterward.
type MemoryMap struct {
	order    []string
	sections map[string]MemorySection
}

// NewMemoryMap builds a MemoryMap from the seven standard sections.
// Missing sections are simply omitted from random-section selection.
func NewMemoryMap(sections ...MemorySection) *MemoryMap {
	mm := &MemoryMap{sections: make(map[string]MemorySection, len(sections))}
	for _, s := range sections {
		mm.order = append(mm.order, s.Name)
		mm.sections[s.Name] = s
	}
	return mm
}

// Section returns the named section and whether it was present.
func (m *MemoryMap) Section(name string) (MemorySection, bool) {
	s, ok := m.sections[name]
	return s, ok
}

// RandomSection picks one of the loaded sections uniformly at random.
func (m *MemoryMap) RandomSection(r *rand.Rand) MemorySection {
	name := m.order[r.Intn(len(m.order))]
	return m.sections[name]
}

// RandomAddress returns a uniformly random address within the named
// section, and false if the section is not loaded.
func (m *MemoryMap) RandomAddress(r *rand.Rand, section string) (uint32, bool) {
	s, ok := m.sections[section]
	if !ok {
		return 0, false
	}
	return s.RandomAddress(r), true
}

// RandomAddressAny picks a random section, then a random address in it.
func (m *MemoryMap) RandomAddressAny(r *rand.Rand) (section string, addr uint32) {
	s := m.RandomSection(r)
	return s.Name, s.RandomAddress(r)
}

// StandardSections lists the section names injectable into "memory".
var StandardSections = []string{"init", "text", "rodata", "data", "bss", "stack", "heap"}

// ForbiddenRange is a closed interval of addresses the injector must
// never write to (e.g. shared timer MMIO).
type ForbiddenRange struct {
	Low, High uint32
}

// Contains reports whether addr falls within the forbidden range,
// inclusive on both ends.
func (f ForbiddenRange) Contains(addr uint32) bool {
	return addr >= f.Low && addr <= f.High
}

// DefaultForbiddenRanges is the default blocklist: shared timer MMIO on
// the default ("pynq") board.
var DefaultForbiddenRanges = []ForbiddenRange{
	{Low: 0xF8F00200, High: 0xF8F0021F},
}

// IsForbidden reports whether addr falls in any configured range.
func IsForbidden(addr uint32, ranges []ForbiddenRange) bool {
	for _, f := range ranges {
		if f.Contains(addr) {
			return true
		}
	}
	return false
}
