// Package rankselect implements a bit vector supporting Rank1/Select1
// queries. Rank1 is O(1) from a cumulative rank stored once per 64-bit
// word; this is a single level, with no separate superblock table. Select1
// jumps to a sample taken every 64th one-bit and then scans forward word
// by word, so its cost grows with the number of words between samples.
package rankselect

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
)

const wordBits = 64

// Bitvector is an immutable bit vector with precomputed rank/select indexes.
type Bitvector struct {
	words []uint64
	n     uint64 // number of bits

	// blockRank[i] = number of 1-bits in words[0:i], a running rank sampled
	// once per word (the rank9 per-word sample; the final OnesCount64 over
	// the remainder of the target word keeps Rank1 O(1)).
	blockRank []uint64
	onesTotal uint64

	// selectSamples[j] holds the bit position of the (j*sampleRate)-th
	// one-bit, letting Select1 jump near the answer before a bounded
	// linear/word scan, mirroring indexSelect32R64's select-sampling scheme.
	selectSamples []uint32
}

const selectSampleRate = 64

// NewBitvector builds rank/select indexes over words, treating it as a
// bit vector of length n bits (n <= len(words)*64).
func NewBitvector(words []uint64, n uint64) (*Bitvector, error) {
	needWords := (n + wordBits - 1) / wordBits
	if uint64(len(words)) < needWords {
		return nil, fmt.Errorf("rankselect: word buffer too small: have %d words, need %d", len(words), needWords)
	}
	bv := &Bitvector{words: words, n: n}
	bv.build()
	return bv, nil
}

func (b *Bitvector) build() {
	nWords := (b.n + wordBits - 1) / wordBits
	b.blockRank = make([]uint64, nWords+1)
	var running uint64
	var selects []uint32
	var ith uint64
	for i := uint64(0); i < nWords; i++ {
		b.blockRank[i] = running
		w := b.words[i]
		// Per spec, bits beyond n in the final word must not count.
		if i == nWords-1 {
			rem := b.n - i*wordBits
			if rem < wordBits {
				w &= (uint64(1) << rem) - 1
			}
		}
		pop := bits.OnesCount64(w)
		if pop > 0 {
			for w != 0 {
				tz := bits.TrailingZeros64(w)
				pos := i*wordBits + uint64(tz)
				if ith%selectSampleRate == 0 {
					selects = append(selects, uint32(pos))
				}
				ith++
				w &= w - 1
			}
		}
		running += uint64(pop)
	}
	b.blockRank[nWords] = running
	b.onesTotal = running
	if len(selects) == 0 {
		selects = []uint32{0}
	}
	b.selectSamples = selects
}

// Len returns the number of bits in the vector.
func (b *Bitvector) Len() uint64 { return b.n }

// Ones returns the total population count.
func (b *Bitvector) Ones() uint64 { return b.onesTotal }

// Bit returns the bit at position i.
func (b *Bitvector) Bit(i uint64) uint64 {
	return (b.words[i/wordBits] >> (i % wordBits)) & 1
}

// Rank1 returns the number of 1-bits in [0, i). Safe for i up to Len().
func (b *Bitvector) Rank1(i uint64) uint64 {
	if i >= b.n {
		return b.onesTotal
	}
	wordIdx := i / wordBits
	bitInWord := i % wordBits
	base := b.blockRank[wordIdx]
	if bitInWord == 0 {
		return base
	}
	w := b.words[wordIdx] & ((uint64(1) << bitInWord) - 1)
	return base + uint64(bits.OnesCount64(w))
}

// GetInt reads bitWidth bits starting at bitOffset as an unsigned integer,
// exposed for the same "scan for a boundary inside a k-mer window" use case
// BitPackedVector provides for seq_ in the sparse index's lookup path.
func (b *Bitvector) GetInt(bitOffset, bitWidth uint64) uint64 {
	if bitWidth == 0 {
		return 0
	}
	wordIdx := bitOffset / wordBits
	bitInWord := bitOffset % wordBits
	lo := b.words[wordIdx]
	var result uint64
	if bitInWord+bitWidth <= wordBits {
		result = lo >> bitInWord
	} else {
		hi := b.words[wordIdx+1]
		result = (lo >> bitInWord) | (hi << (wordBits - bitInWord))
	}
	if bitWidth == 64 {
		return result
	}
	return result & ((uint64(1) << bitWidth) - 1)
}

// Select1 returns the position of the j-th 1-bit (0-indexed). Undefined for
// j >= Ones().
func (b *Bitvector) Select1(j uint64) uint64 {
	sampleIdx := j / selectSampleRate
	if sampleIdx >= uint64(len(b.selectSamples)) {
		sampleIdx = uint64(len(b.selectSamples)) - 1
	}
	wordIdx := uint64(b.selectSamples[sampleIdx]) / wordBits

	nWords := uint64(len(b.blockRank)) - 1
	for wordIdx < nWords && b.blockRank[wordIdx+1] <= j {
		wordIdx++
	}
	rem := j - b.blockRank[wordIdx]
	w := b.words[wordIdx]
	for rem > 0 {
		w &= w - 1
		rem--
	}
	return wordIdx*wordBits + uint64(bits.TrailingZeros64(w))
}

// Deserialize reads a bit-vector header (bit length) followed by its packed
// words, then rebuilds the rank/select index. Matches the on-disk layout of
// rank.bin/presence.bin/extension_bound.bin/direction.bin/canonical.bin.
func (b *Bitvector) Deserialize(r io.Reader) error {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("rankselect: reading bit length: %w", err)
	}
	nWords := (n + wordBits - 1) / wordBits
	words := make([]uint64, nWords)
	if nWords > 0 {
		if err := binary.Read(r, binary.LittleEndian, words); err != nil {
			return fmt.Errorf("rankselect: reading %d words: %w", nWords, err)
		}
	}
	nb, err := NewBitvector(words, n)
	if err != nil {
		return err
	}
	*b = *nb
	return nil
}
