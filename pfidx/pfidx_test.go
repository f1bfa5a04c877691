package pfidx

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/pufferfish/kmer"
	"github.com/stretchr/testify/require"
)

func baseCode(c byte) uint64 {
	switch c {
	case 'A':
		return kmer.BaseA
	case 'C':
		return kmer.BaseC
	case 'G':
		return kmer.BaseG
	case 'T':
		return kmer.BaseT
	}
	panic("bad base")
}

func packBits(vals []uint64, width int) []uint64 {
	n := len(vals)
	nWords := (n*width + 63) / 64
	words := make([]uint64, nWords)
	var bitOff uint64
	for _, v := range vals {
		wordIdx := bitOff / 64
		bitInWord := bitOff % 64
		words[wordIdx] |= v << bitInWord
		if bitInWord+uint64(width) > 64 {
			words[wordIdx+1] |= v >> (64 - bitInWord)
		}
		bitOff += uint64(width)
	}
	return words
}

func writeFile(t *testing.T, dir, name string, buf *bytes.Buffer) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0644))
}

func bitpackBuf(bits uint8, vals []uint64) *bytes.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, bits)
	binary.Write(&buf, binary.LittleEndian, [7]uint8{})
	binary.Write(&buf, binary.LittleEndian, uint64(len(vals)))
	binary.Write(&buf, binary.LittleEndian, packBits(vals, int(bits)))
	return &buf
}

func bitvectorBuf(bitVals []uint64) *bytes.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(bitVals)))
	binary.Write(&buf, binary.LittleEndian, packBits(bitVals, 1))
	return &buf
}

func mphfBuf(wordOfIdx []uint64) *bytes.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(wordOfIdx)))
	binary.Write(&buf, binary.LittleEndian, wordOfIdx)
	return &buf
}

func nameTableBuf(names []string) *bytes.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(names)))
	writeStr := func(s string) {
		binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
		buf.WriteString(s)
	}
	for _, n := range names {
		writeStr(n)
	}
	for range names {
		writeStr("")
	}
	return &buf
}

func u32Buf(vals []uint32) *bytes.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, vals)
	return &buf
}

func u64Buf(vals []uint64) *bytes.Buffer {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, vals)
	return &buf
}

// buildIndexDir writes a complete, minimal single-unitig index directory
// (no unsampled k-mers, matching sparseindex's own S1 fixture) and returns
// its path.
func buildIndexDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	const seqStr = "ACGTACGTAC"
	const k = 5
	L := len(seqStr)

	var bases, boundary []uint64
	for i := 0; i < L; i++ {
		bases = append(bases, baseCode(seqStr[i]))
		boundary = append(boundary, 0)
	}
	boundary[L-1] = 1

	var validPos []int
	for p := 0; p+k <= L; p++ {
		crosses := false
		for j := p; j < p+k-1; j++ {
			if boundary[j] == 1 {
				crosses = true
				break
			}
		}
		if !crosses {
			validPos = append(validPos, p)
		}
	}

	canonWord := func(p int) uint64 {
		codes := make([]uint64, k)
		copy(codes, bases[p:p+k])
		return kmer.FromBases(codes).Canonical().Word
	}

	assignment := make(map[uint64]uint64)
	var wordOfIdx []uint64
	posOfIdx := make(map[uint64]int)
	for _, p := range validPos {
		w := canonWord(p)
		if _, ok := assignment[w]; !ok {
			assignment[w] = uint64(len(wordOfIdx))
			wordOfIdx = append(wordOfIdx, w)
			posOfIdx[w] = p
		}
	}
	numKmers := len(wordOfIdx)
	sampledPosVals := make([]uint64, numKmers)
	for w, idx := range assignment {
		sampledPosVals[idx] = uint64(posOfIdx[w])
	}

	maxPos := uint64(L)
	posWidth := 1
	for (uint64(1) << posWidth) <= maxPos {
		posWidth++
	}

	hdr := info{
		K:               k,
		NumKmers:        uint64(numKmers),
		NumSampledKmers: uint64(numKmers),
		ExtensionSize:   4,
	}
	hdrBytes, err := json.Marshal(hdr)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "info.json"), hdrBytes, 0644))

	writeFile(t, dir, "mphf.bin", mphfBuf(wordOfIdx))
	writeFile(t, dir, "seq.bin", bitpackBuf(2, bases))
	writeFile(t, dir, "rank.bin", bitvectorBuf(boundary))
	writeFile(t, dir, "presence.bin", bitvectorBuf(onesVec(numKmers)))
	writeFile(t, dir, "sample_pos.bin", bitpackBuf(uint8(posWidth), sampledPosVals))
	writeFile(t, dir, "extension_bp.bin", bitpackBuf(2, nil))
	writeFile(t, dir, "extension_bound.bin", bitvectorBuf(nil))
	writeFile(t, dir, "extension_size.bin", bitpackBuf(8, nil))
	writeFile(t, dir, "direction.bin", bitvectorBuf(nil))
	writeFile(t, dir, "canonical.bin", bitvectorBuf(nil))

	writeFile(t, dir, "ctable.bin", nameTableBuf([]string{"unitig0"}))
	writeFile(t, dir, "uref.bin", bitpackBuf(8, []uint64{0}))
	writeFile(t, dir, "upos.bin", bitpackBuf(8, []uint64{(0 << 1) | 1}))
	writeFile(t, dir, "contig_offsets.bin", bitpackBuf(8, []uint64{0, 1}))
	writeFile(t, dir, "reflengths.bin", u32Buf([]uint32{uint32(L)}))
	writeFile(t, dir, "refAccumLengths.bin", u64Buf([]uint64{0}))
	writeFile(t, dir, "completeRefLengths.bin", u64Buf([]uint64{uint64(L)}))

	return dir
}

func onesVec(n int) []uint64 {
	v := make([]uint64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}

func TestLoadAndProject(t *testing.T) {
	dir := buildIndexDir(t)
	idx, err := Load(dir, LoadOpts{})
	require.NoError(t, err)

	fwd := kmer.FromBases([]uint64{baseCode('A'), baseCode('C'), baseCode('G'), baseCode('T'), baseCode('A')})
	hit := idx.Project(fwd)
	require.False(t, hit.Empty())
	require.EqualValues(t, 0, hit.ContigIdx)
	require.EqualValues(t, 0, hit.ContigPos)
	require.True(t, hit.ContigOrientation)
	require.EqualValues(t, 10, hit.ContigLen)
}

func TestLoadMissingInfoJSON(t *testing.T) {
	dir := buildIndexDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "info.json")))
	_, err := Load(dir, LoadOpts{})
	require.Error(t, err)
}

func TestLoadMissingArtifact(t *testing.T) {
	dir := buildIndexDir(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "presence.bin")))
	_, err := Load(dir, LoadOpts{})
	require.Error(t, err)
}

func TestLoadCorruptBitpackHeader(t *testing.T) {
	dir := buildIndexDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seq.bin"), []byte{0, 0, 0}, 0644))
	_, err := Load(dir, LoadOpts{})
	require.Error(t, err)
}
