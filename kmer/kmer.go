// Package kmer implements the 2-bit canonical k-mer encoding shared by the
// sparse index's lookup and its extension walk. Parsing k-mers out of a
// read is left to an external k-mer iterator; this package only supplies
// the bit-level primitives the index's own lookup path must perform
// mid-query: canonicalization, reverse-complement, and the single-base
// shifts the extension walk applies.
package kmer

import "math/bits"

// Base codes, 2 bits per base, matching the index's on-disk 2-bit
// nucleotide encoding (A=0, C=1, G=2, T=3).
const (
	BaseA = 0
	BaseC = 1
	BaseG = 2
	BaseT = 3
)

// MatchType describes how a query k-mer relates to a candidate word found
// at a position in the unitig sequence.
type MatchType int

const (
	NoMatch MatchType = iota
	Identity
	Twin
)

// maxK is the largest k this 64-bit word encoding can represent.
const maxK = 32

// Kmer is a 2-bit-encoded nucleotide k-mer. Word holds the 2*K low bits;
// higher bits are always zero.
type Kmer struct {
	Word uint64
	K    uint8
}

// New builds a Kmer from an explicit word and length. K must be <= 32.
func New(word uint64, k uint8) Kmer {
	if k > maxK {
		panic("kmer: k exceeds 32, cannot fit in a 64-bit word")
	}
	mask := mask2Bit(k)
	return Kmer{Word: word & mask, K: k}
}

func mask2Bit(k uint8) uint64 {
	if k >= maxK {
		return ^uint64(0)
	}
	return (uint64(1) << (2 * k)) - 1
}

// complementBase returns the complementary base code (A<->T, C<->G).
func complementBase(code uint64) uint64 { return code ^ 0x3 }

// ReverseComplement returns the reverse complement of k.
func (k Kmer) ReverseComplement() Kmer {
	w := k.Word
	var rc uint64
	for i := uint8(0); i < k.K; i++ {
		base := w & 0x3
		w >>= 2
		rc = (rc << 2) | complementBase(base)
	}
	return Kmer{Word: rc, K: k.K}
}

// IsFwCanonical reports whether k's word is already lexicographically <=
// its reverse complement's word (i.e. k is its own canonical form).
func (k Kmer) IsFwCanonical() bool {
	return k.Word <= k.ReverseComplement().Word
}

// Canonical returns the canonical form of k: itself if IsFwCanonical,
// otherwise its reverse complement.
func (k Kmer) Canonical() Kmer {
	rc := k.ReverseComplement()
	if k.Word <= rc.Word {
		return k
	}
	return rc
}

// Swap returns the twin (reverse complement) of k — used when the walk
// needs to flip orientation to match a recorded canonical-ness bit.
func (k Kmer) Swap() Kmer { return k.ReverseComplement() }

// ShiftForward consumes one new base code at the 3' end, dropping the
// oldest (5'-most) base: equivalent to advancing the k-mer window forward
// by one position in the original sequence.
func (k Kmer) ShiftForward(code uint64) Kmer {
	w := (k.Word >> 2) | (code << (2 * (k.K - 1)))
	return Kmer{Word: w & mask2Bit(k.K), K: k.K}
}

// ShiftBackward prepends one new base code at the 5' end, dropping the
// oldest (3'-most) base: equivalent to moving the k-mer window backward by
// one position in the original sequence.
func (k Kmer) ShiftBackward(code uint64) Kmer {
	w := (k.Word << 2) | code
	return Kmer{Word: w & mask2Bit(k.K), K: k.K}
}

// Equivalent reports how word (another k-mer's raw encoding, same K)
// relates to k: NoMatch, Identity (equal), or Twin (reverse-complement
// equal).
func (k Kmer) Equivalent(word uint64) MatchType {
	if k.Word == word {
		return Identity
	}
	if k.ReverseComplement().Word == word {
		return Twin
	}
	return NoMatch
}

// PopCount is exposed for tests exercising 2-bit packing invariants; it has
// no role in the lookup algorithm itself.
func PopCount(word uint64) int { return bits.OnesCount64(word) }

// FromBases encodes a base-code slice (values 0..3) into a Kmer. Index 0 is
// the 5'-most base and occupies the lowest two bits of Word, matching
// seq.bin's window-extraction convention used by GetInt(2*pos, 2*k).
func FromBases(codes []uint64) Kmer {
	var w uint64
	for i := len(codes) - 1; i >= 0; i-- {
		w = (w << 2) | codes[i]
	}
	return New(w, uint8(len(codes)))
}
