package inject

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byuccl/coast/internal/model"
)

type fakeLink struct {
	words     map[uint32]uint32
	registers map[string]uint32
}

func newFakeLink() *fakeLink {
	return &fakeLink{words: map[uint32]uint32{}, registers: map[string]uint32{}}
}

func (f *fakeLink) ReadWord(addr uint32) (uint32, error)           { return f.words[addr], nil }
func (f *fakeLink) WriteWord(addr uint32, value uint32) error      { f.words[addr] = value; return nil }
func (f *fakeLink) ReadRegister(name string) (uint32, error)       { return f.registers[name], nil }
func (f *fakeLink) WriteRegister(name string, value uint32) error  { f.registers[name] = value; return nil }
func (f *fakeLink) SymbolAt(addr uint32) (string, bool)            { return "", false }

type fakeCache struct{}

func (fakeCache) RequestCacheWord(name string) (int, int, int, bool, error) {
	return 1, 2, 3, true, nil
}

func newTestInjector() *Injector {
	mem := model.NewMemoryMap(model.MemorySection{Name: "data", Start: 0x1000, Size: 0x100})
	regs := []model.Register{{Name: "r0", Index: 0}}
	return New(regs, mem, nil, model.DefaultForbiddenRanges, nil, 42)
}

func TestInjectMemoryBitFlip(t *testing.T) {
	inj := newTestInjector()
	link := newFakeLink()
	link.words[0x1050] = 0x00000000

	log, err := inj.Inject(0, "data", link, nil)
	require.NoError(t, err)
	assert.Equal(t, "data", log.Section)
	assert.NotEqual(t, log.OldValue, log.NewValue)
	oldV := parseHex(t, log.OldValue)
	newV := parseHex(t, log.NewValue)
	assert.Equal(t, uint32(1), popcount(oldV^newV), "exactly one bit differs")
}

func TestInjectRegisterTarget(t *testing.T) {
	inj := newTestInjector()
	link := newFakeLink()
	link.registers["r0"] = 0xFFFFFFFF

	log, err := inj.Inject(1, "registers", link, nil)
	require.NoError(t, err)
	assert.Equal(t, "r0", log.Address)
}

func TestInjectForbiddenRangeRejected(t *testing.T) {
	mem := model.NewMemoryMap(model.MemorySection{Name: "mmio", Start: 0xF8F00200, Size: 0x20})
	inj := New(nil, mem, nil, model.DefaultForbiddenRanges, nil, 7)
	link := newFakeLink()

	_, err := inj.Inject(0, "mmio", link, nil)
	require.ErrorIs(t, err, model.ErrInvalidRange)
}

func TestInjectForcedTargetOverridesSelection(t *testing.T) {
	inj := newTestInjector()
	inj.Forced = []model.ForcedInjection{
		{Iteration: model.AlwaysActive, Target: model.MemoryWord("data", 0x1010), Value: 0xDEADBEEF},
	}
	link := newFakeLink()

	log, err := inj.Inject(5, "registers", link, nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), parseHex(t, log.NewValue))
}

func TestInjectCacheWordUsesPlugin(t *testing.T) {
	inj := newTestInjector()
	inj.Caches = model.NewCacheTopology(model.CacheData{Name: "dcache", CacheSize: 1024, Associativity: 2, BlockSize: 32, WordSize: 4})
	link := newFakeLink()

	log, err := inj.Inject(0, "cache", link, fakeCache{})
	require.NoError(t, err)
	require.NotNil(t, log.CacheInfo)
	assert.Equal(t, "dcache", log.CacheInfo.Name)
	assert.False(t, log.CacheInfo.Dirty, "validBit true means not dirty")
}

func TestParseForced(t *testing.T) {
	target, val, err := ParseForced("set 0x1000 = 0xFF")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1000), target.Address)
	assert.Equal(t, uint32(0xFF), val)
}

func TestParseForcedRejectsMalformed(t *testing.T) {
	_, _, err := ParseForced("nonsense")
	assert.Error(t, err)
}

func popcount(v uint32) uint32 {
	var n uint32
	for v != 0 {
		n += v & 1
		v >>= 1
	}
	return n
}

func parseHex(t *testing.T, s string) uint32 {
	t.Helper()
	var v uint32
	_, err := fmt.Sscanf(s, "0x%x", &v)
	require.NoError(t, err)
	return v
}
