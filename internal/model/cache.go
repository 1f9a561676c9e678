package model

import (
	"fmt"
	"math/rand"
)

// CachePolicy is the cache's line replacement policy.
type CachePolicy int

const (
	PolicyRoundRobin CachePolicy = iota
	PolicyRandom
)

func (p CachePolicy) String() string {
	switch p {
	case PolicyRoundRobin:
		return "round_robin"
	case PolicyRandom:
		return "random"
	default:
		return "unknown"
	}
}

// CacheData describes one cache's physical characteristics, matching
// original_source/resources/mem.py's CacheData.
type CacheData struct {
	Name          string
	CacheSize     int
	Associativity int
	BlockSize     int
	Policy        CachePolicy
	WordSize      int
}

// Rows is the derived row count: size / (block_size * associativity).
func (c CacheData) Rows() int {
	rowBytes := c.BlockSize * c.Associativity
	if rowBytes == 0 {
		return 0
	}
	return c.CacheSize / rowBytes
}

// RandomWord returns a uniformly random (row, block, word) address
// within this single cache.
func (c CacheData) RandomWord(r *rand.Rand) (row, block, word int) {
	rows := c.Rows()
	if rows <= 0 {
		rows = 1
	}
	wordsPerBlock := c.BlockSize / c.WordSize
	if wordsPerBlock <= 0 {
		wordsPerBlock = 1
	}
	return r.Intn(rows), r.Intn(c.Associativity), r.Intn(wordsPerBlock)
}

// CacheTopology is the full set of caches on a board (icache, dcache,
// l2cache), with weighted-by-size random selection across them.
type CacheTopology struct {
	Caches map[string]CacheData
	order  []string // insertion order, for deterministic weighted draw
}

// NewCacheTopology builds a topology from a fixed set of caches.
func NewCacheTopology(caches ...CacheData) *CacheTopology {
	t := &CacheTopology{Caches: make(map[string]CacheData, len(caches))}
	for _, c := range caches {
		t.Caches[c.Name] = c
		t.order = append(t.order, c.Name)
	}
	return t
}

// RandomCacheName picks a cache name weighted by CacheSize, used when
// the injector is told to target "cache" generically rather than a
// specific named cache, before handing the choice to the plugin
// channel for the actual word selection.
func (t *CacheTopology) RandomCacheName(r *rand.Rand) string {
	return t.weightedPick(r).Name
}

// RandomWordAddr picks a cache (weighted by size, unless a specific
// cache name is given) and a random word within it. Mirrors
// MemHierarchy.randomWordCacheAddr's weighted-reservoir draw.
func (t *CacheTopology) RandomWordAddr(r *rand.Rand, cacheName string) (name string, row, block, word int, err error) {
	if cacheName != "" {
		c, ok := t.Caches[cacheName]
		if !ok {
			return "", 0, 0, 0, fmt.Errorf("unknown cache %q", cacheName)
		}
		row, block, word = c.RandomWord(r)
		return c.Name, row, block, word, nil
	}

	c := t.weightedPick(r)
	row, block, word = c.RandomWord(r)
	return c.Name, row, block, word, nil
}

// weightedPick implements a weighted-reservoir sample over the caches
// by CacheSize, as Design Notes §9 calls for, instead of building a
// cumulative-weight table like Python's random.choices.
func (t *CacheTopology) weightedPick(r *rand.Rand) CacheData {
	var chosen CacheData
	var totalWeight float64
	for _, name := range t.order {
		c := t.Caches[name]
		w := float64(c.CacheSize)
		totalWeight += w
		if totalWeight == 0 {
			continue
		}
		if r.Float64() < w/totalWeight {
			chosen = c
		}
	}
	return chosen
}
