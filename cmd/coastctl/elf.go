package main

import (
	"debug/elf"
	"fmt"
	"strings"

	"github.com/byuccl/coast/internal/model"
)

// sectionAliases maps the ELF section names emitted by the board
// toolchains coastctl targets onto the standard region names
// model.MemoryMap understands. ".bss" is already standard; most
// toolchains don't emit a distinct ".stack"/".heap" section header, so
// those two are left for the caller to size from a linker script when
// present and are simply omitted otherwise.
var sectionAliases = map[string]string{
	".init":   "init",
	".text":   "text",
	".rodata": "rodata",
	".data":   "data",
	".bss":    "bss",
}

// loadMemoryMap reads just the ELF section header table of path and
// turns the standard regions into a model.MemoryMap. This is the
// minimal "consumption" of a read-only MemoryMap input: no symbol
// table or DWARF parsing is performed.
func loadMemoryMap(path string) (*model.MemoryMap, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf %s: %w", path, err)
	}
	defer f.Close()

	var sections []model.MemorySection
	for _, sec := range f.Sections {
		name, ok := sectionAliases[strings.TrimSpace(sec.Name)]
		if !ok {
			continue
		}
		if sec.Size == 0 {
			continue
		}
		sections = append(sections, model.MemorySection{
			Name:  name,
			Start: uint32(sec.Addr),
			Size:  uint32(sec.Size),
		})
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("elf %s: no standard sections found", path)
	}
	return model.NewMemoryMap(sections...), nil
}
