package mphf

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
)

// FarmHasher is a brute-force perfect hash built with farmhash, used by
// tests and small fixtures in place of a real BBHash MPHF (constructing a
// production-grade MPHF is index-construction work, out of scope for the
// mapping core). It probes increasing seeds with farm.Hash64WithSeed until
// it finds one that assigns the key set a collision-free bijection onto
// [0, len(keys)), the same "brute force a perfect hash function" step
// described for per-bucket construction in compactindex-style formats.
type FarmHasher struct {
	seed    uint64
	numKeys uint64
}

// NewFarmHasher builds a FarmHasher whose Lookup is a bijection from keys
// onto [0, len(keys)).
func NewFarmHasher(keys []uint64) *FarmHasher {
	n := uint64(len(keys))
	if n == 0 {
		return &FarmHasher{numKeys: 0}
	}
	for seed := uint64(0); ; seed++ {
		seen := make(map[uint64]bool, n)
		ok := true
		for _, k := range keys {
			h := farmHash(k, seed) % n
			if seen[h] {
				ok = false
				break
			}
			seen[h] = true
		}
		if ok {
			return &FarmHasher{seed: seed, numKeys: n}
		}
	}
}

func farmHash(word, seed uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	return farm.Hash64WithSeed(buf[:], seed)
}

// Lookup returns the dense index assigned to word. For a word outside the
// original key set this returns an essentially arbitrary value in
// [0, NumKeys()); callers must verify the result independently.
func (h *FarmHasher) Lookup(word uint64) uint64 {
	if h.numKeys == 0 {
		return 0
	}
	return farmHash(word, h.seed) % h.numKeys
}

// NumKeys returns N.
func (h *FarmHasher) NumKeys() uint64 { return h.numKeys }
