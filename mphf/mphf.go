// Package mphf provides an opaque lookup interface over a minimal perfect
// hash function keyed by 64-bit canonical k-mer words. Construction of a
// real MPHF (e.g. a BBHash build) is index-construction work and out of
// scope for this package; Hasher only models the read side the sparse
// index needs: a bijection from the N k-mers actually present in the index
// to [0, N), with out-of-set keys mapping either to some value in [0, N)
// that the caller must verify independently or to a value >= N.
package mphf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Hasher looks up the dense hash index assigned to a canonical k-mer word.
// Lookup of a word not in the original key set returns either some value
// in [0, NumKeys()) or a value >= NumKeys() (TableHasher returns NumKeys());
// the caller is responsible for rejecting results >= NumKeys() and false
// positives, the latter by verifying the k-mer at the resulting position.
type Hasher interface {
	Lookup(word uint64) uint64
	NumKeys() uint64
}

// TableHasher is a Hasher backed by an explicit, fully materialized
// word->index table. It exists to let tests and small fixtures construct a
// Hasher without depending on a real MPHF library, and mirrors the
// structure of a loaded on-disk mphf.bin artifact: a flat array the real
// MPHF would otherwise query via its own internal probing.
type TableHasher struct {
	index   map[uint64]uint64
	numKeys uint64
}

// NewTableHasher builds a Hasher over the given (word -> dense index)
// assignment. The caller must ensure indices are a bijection onto
// [0, len(assignment)).
func NewTableHasher(assignment map[uint64]uint64) *TableHasher {
	return &TableHasher{index: assignment, numKeys: uint64(len(assignment))}
}

// Lookup returns the assigned dense index for word, or NumKeys() (an
// out-of-range sentinel) if word was not part of the original key set.
func (h *TableHasher) Lookup(word uint64) uint64 {
	if idx, ok := h.index[word]; ok {
		return idx
	}
	return h.numKeys
}

// NumKeys returns N, the number of keys in the perfect hash's domain.
func (h *TableHasher) NumKeys() uint64 { return h.numKeys }

// Deserialize reads a key-ordered-by-dense-index table from r: a uint64
// count N followed by N uint64 canonical k-mer words, the word assigned
// dense index i stored at position i. This is the on-disk shape mphf.bin
// is read as here: the real MPHF's internal bit arrays are a construction-
// time detail (out of this package's scope per the doc comment above), so
// the loader only needs the bijection they implement, which a dense key
// table reproduces exactly for lookup purposes.
func (h *TableHasher) Deserialize(r io.Reader) error {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("mphf: reading key count: %w", err)
	}
	words := make([]uint64, n)
	if n > 0 {
		if err := binary.Read(r, binary.LittleEndian, words); err != nil {
			return fmt.Errorf("mphf: reading %d keys: %w", n, err)
		}
	}
	index := make(map[uint64]uint64, n)
	for i, w := range words {
		index[w] = uint64(i)
	}
	h.index = index
	h.numKeys = n
	return nil
}
