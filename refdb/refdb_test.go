package refdb

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeNameTable(t *testing.T, names, ext []string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(names))))
	writeStr := func(s string) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(s))))
		buf.WriteString(s)
	}
	for _, n := range names {
		writeStr(n)
	}
	for _, e := range ext {
		writeStr(e)
	}
	return &buf
}

func writeBitpackVector(t *testing.T, bits uint8, vals []uint64) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, bits))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, [7]uint8{}))
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(vals))))
	nWords := (uint64(len(vals))*uint64(bits) + 63) / 64
	words := make([]uint64, nWords)
	var bitOff uint64
	for _, v := range vals {
		wordIdx := bitOff / 64
		bitInWord := bitOff % 64
		words[wordIdx] |= v << bitInWord
		if bitInWord+uint64(bits) > 64 {
			words[wordIdx+1] |= v >> (64 - bitInWord)
		}
		bitOff += uint64(bits)
	}
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, words))
	return &buf
}

func writeUint32Table(t *testing.T, vals []uint32) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, vals))
	return &buf
}

func writeUint64Table(t *testing.T, vals []uint64) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, vals))
	return &buf
}

func TestLoadAndDecodeRefRange(t *testing.T) {
	// Two contigs. Contig 0 occurs in ref0 fwd at pos 5, and ref1 rev at
	// pos 9. Contig 1 occurs only in ref0 fwd at pos 50.
	urefVals := []uint64{0, 1, 0}
	uposVals := []uint64{(5 << 1) | 1, (9 << 1) | 0, (50 << 1) | 1}
	contigOffsets := []uint64{0, 2, 3}

	ctable := writeNameTable(t, []string{"ref0", "ref1"}, []string{"", ""})
	urefBuf := writeBitpackVector(t, 8, urefVals)
	uposBuf := writeBitpackVector(t, 8, uposVals)
	offsetsBuf := writeBitpackVector(t, 8, contigOffsets)
	reflens := writeUint32Table(t, []uint32{100, 200})
	accum := writeUint64Table(t, []uint64{0, 100})
	complete := writeUint64Table(t, []uint64{100, 200})

	db, err := Load(ctable, urefBuf, uposBuf, offsetsBuf, reflens, accum, complete)
	require.NoError(t, err)
	require.Equal(t, 2, db.NumContigs())
	require.Equal(t, 2, db.NumRefs())
	require.Equal(t, "ref0", db.RefName(0))
	require.Equal(t, uint32(100), db.RefLen(0))

	r0 := db.ContigRange(0)
	require.Equal(t, 2, r0.Size())
	entries := r0.All()
	require.Equal(t, Entry{RefID: 0, RefPos: 5, RefIsFw: true}, entries[0])
	require.Equal(t, Entry{RefID: 1, RefPos: 9, RefIsFw: false}, entries[1])

	r1 := db.ContigRange(1)
	require.Equal(t, 1, r1.Size())
	require.Equal(t, Entry{RefID: 0, RefPos: 50, RefIsFw: true}, r1.All()[0])
}
