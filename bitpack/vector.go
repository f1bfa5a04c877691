// Package bitpack implements a fixed-width packed-integer array over a
// 64-bit word buffer, and its on-disk serialization format.
package bitpack

import (
	"encoding/binary"
	"fmt"
	"io"
)

const maxBitWidth = 64

// Vector is a read-only array of fixed-width unsigned integers packed
// into consecutive bits of a uint64 word slice.
type Vector struct {
	words []uint64
	bits  uint8 // width, in bits, of each element
	n     uint64
}

// NewVector wraps an existing word buffer. bits must be in (0, 64].
func NewVector(words []uint64, bits uint8, n uint64) (Vector, error) {
	if bits == 0 || bits > maxBitWidth {
		return Vector{}, fmt.Errorf("bitpack: invalid element width %d", bits)
	}
	needWords := (n*uint64(bits) + 63) / 64
	if uint64(len(words)) < needWords {
		return Vector{}, fmt.Errorf("bitpack: word buffer too small: have %d words, need %d", len(words), needWords)
	}
	return Vector{words: words, bits: bits, n: n}, nil
}

// Len returns the number of packed elements.
func (v Vector) Len() uint64 { return v.n }

// Bits returns the per-element bit width.
func (v Vector) Bits() uint8 { return v.bits }

// Get returns the elemIdx-th packed element.
func (v Vector) Get(elemIdx uint64) uint64 {
	return v.GetInt(elemIdx*uint64(v.bits), uint64(v.bits))
}

// GetInt reads an arbitrary bit field of width bitWidth (<= 64) starting at
// bitOffset. The field may span at most two consecutive 64-bit words.
func (v Vector) GetInt(bitOffset, bitWidth uint64) uint64 {
	if bitWidth == 0 {
		return 0
	}
	if bitWidth > maxBitWidth {
		panic(fmt.Sprintf("bitpack: GetInt width %d exceeds 64", bitWidth))
	}
	wordIdx := bitOffset / 64
	bitInWord := bitOffset % 64

	lo := v.words[wordIdx]
	var result uint64
	if bitInWord+bitWidth <= 64 {
		result = (lo >> bitInWord)
	} else {
		hi := v.words[wordIdx+1]
		lowBits := 64 - bitInWord
		result = (lo >> bitInWord) | (hi << lowBits)
	}
	if bitWidth == 64 {
		return result
	}
	return result & ((uint64(1) << bitWidth) - 1)
}

// Deserialize reads a header (element width, element count) followed by the
// packed word array, little-endian, matching the on-disk layout of the
// index's bit-packed vector files (seq.bin, sample_pos.bin, and the
// extension-table artifacts).
func (v *Vector) Deserialize(r io.Reader) error {
	var hdr struct {
		Bits uint8
		_    [7]uint8 // padding to align the following uint64
		N    uint64
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Bits); err != nil {
		return fmt.Errorf("bitpack: reading width header: %w", err)
	}
	var pad [7]uint8
	if err := binary.Read(r, binary.LittleEndian, &pad); err != nil {
		return fmt.Errorf("bitpack: reading header padding: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.N); err != nil {
		return fmt.Errorf("bitpack: reading element count: %w", err)
	}
	if hdr.Bits == 0 || hdr.Bits > maxBitWidth {
		return fmt.Errorf("bitpack: corrupt header: element width %d out of range", hdr.Bits)
	}
	nWords := (hdr.N*uint64(hdr.Bits) + 63) / 64
	words := make([]uint64, nWords)
	if nWords > 0 {
		if err := binary.Read(r, binary.LittleEndian, words); err != nil {
			return fmt.Errorf("bitpack: reading %d words: %w", nWords, err)
		}
	}
	nv, err := NewVector(words, hdr.Bits, hdr.N)
	if err != nil {
		return err
	}
	*v = nv
	return nil
}
