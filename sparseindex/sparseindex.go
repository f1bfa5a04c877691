// Package sparseindex implements the lookup half of the cdBG k-mer index:
// mapping a canonical k-mer to its coordinates inside the concatenated
// unitig sequence, using a minimal perfect hash, a sampled-position table,
// and a bounded extension walk to recover unsampled k-mers.
package sparseindex

import (
	"math"

	"github.com/grailbio/pufferfish/bitpack"
	"github.com/grailbio/pufferfish/kmer"
	"github.com/grailbio/pufferfish/mphf"
	"github.com/grailbio/pufferfish/rankselect"
	"github.com/grailbio/pufferfish/refdb"
)

// emptyContigIdx is the sentinel ProjectedHit.ContigIdx value for a failed
// lookup (absent k-mer, diverged walk, or a boundary-crossing window).
const emptyContigIdx = math.MaxUint32

// noCachedRank marks a QueryCache that has not resolved any unitig yet.
const noCachedRank = math.MaxUint32

// ProjectedHit is the result of a single k-mer lookup.
type ProjectedHit struct {
	ContigIdx         uint32
	GlobalPos         uint64
	ContigPos         uint32
	ContigOrientation bool
	ContigLen         uint32
	K                 uint8
	RefRange          refdb.RefRange
}

// Empty reports whether this is the sentinel "not found" hit.
func (h ProjectedHit) Empty() bool { return h.ContigIdx == emptyContigIdx }

func emptyHit(k uint8) ProjectedHit {
	return ProjectedHit{
		ContigIdx:         emptyContigIdx,
		GlobalPos:         math.MaxUint64,
		ContigPos:         emptyContigIdx,
		ContigOrientation: true,
		ContigLen:         0,
		K:                 k,
	}
}

// QueryCache memoizes the last resolved unitig's (rank, start, end) so that
// consecutive queries landing in the same unitig can skip the rank/select
// pair. It is an explicit in/out parameter rather than ambient state so a
// caller chaining many queries per read controls its own cache lifetime
// (one per worker, reset per read) without any package-level mutable state.
type QueryCache struct {
	PrevRank    uint32
	ContigStart uint64
	ContigEnd   uint64
}

// NewQueryCache returns a QueryCache with no resolved unitig yet.
func NewQueryCache() QueryCache { return QueryCache{PrevRank: noCachedRank} }

// Index is the loaded, read-only sparse k-mer index.
type Index struct {
	K              uint8
	TwoK           uint16
	NumKmers       uint64
	NumSampledKmers uint64
	ExtensionSize  uint32

	Hash mphf.Hasher

	Seq           bitpack.Vector // 2-bit-per-base concatenated unitig sequence
	LastSeqPos    uint64
	ContigBoundary *rankselect.Bitvector // B
	PresenceVec    *rankselect.Bitvector // P
	SampledPos     bitpack.Vector        // S

	ExtTable      bitpack.Vector        // concatenated variable-length extension codes
	ExtBoundaries *rankselect.Bitvector // start-of-entry marks into ExtTable
	ExtSize       bitpack.Vector        // per-entry code count
	DirectionVec  *rankselect.Bitvector // 1 = shift forward
	CanonicalNess *rankselect.Bitvector // whether extension was recorded canonically

	Refs *refdb.DB
}

// K8 returns the k-mer size (method form, Index.K is also a public field
// for direct access from tight loops).
func (idx *Index) K8() uint8 { return idx.K }

// RefName returns the name of reference refID.
func (idx *Index) RefName(refID uint32) string { return idx.Refs.RefName(refID) }

// RefLen returns the length of reference refID.
func (idx *Index) RefLen(refID uint32) uint32 { return idx.Refs.RefLen(refID) }

// Project looks up kmer with no cross-query cache.
func (idx *Index) Project(k kmer.Kmer) ProjectedHit {
	qc := NewQueryCache()
	return idx.ProjectCached(k, &qc)
}

// ProjectCached looks up kmer, using and updating qc to short-circuit the
// rank/select pair when consecutive queries land in the same unitig.
func (idx *Index) ProjectCached(k kmer.Kmer, qc *QueryCache) ProjectedHit {
	pos, didWalk, ok := idx.lookupPosition(k)
	if !ok {
		return emptyHit(idx.K)
	}
	return idx.buildHit(k, pos, didWalk, qc)
}

// lookupPosition resolves kmer to a candidate unitig position, walking the
// extension table when the canonical k-mer is not itself sampled. It
// returns ok=false for any absent k-mer or a walk that fails to reach a
// sampled, in-range k-mer.
func (idx *Index) lookupPosition(original kmer.Kmer) (pos uint64, didWalk bool, ok bool) {
	mer := original
	if !mer.IsFwCanonical() {
		mer = mer.Swap()
	}
	km := mer.Word

	hashIdx := idx.Hash.Lookup(km)
	if hashIdx >= idx.NumKmers {
		return 0, false, false
	}

	rank := idx.PresenceVec.Rank1(hashIdx)
	if idx.PresenceVec.Bit(hashIdx) == 1 {
		return idx.SampledPos.Get(rank), false, true
	}

	didWalk = true
	var signedShift int64
	extPos := hashIdx - rank
	extWord, extLen := idx.getExtension(extPos)

	if idx.CanonicalNess.Bit(extPos) == 0 && mer.IsFwCanonical() {
		mer = mer.Swap()
	}

	shiftFw := idx.DirectionVec.Bit(extPos) == 1
	llimit := int32(idx.ExtensionSize) - int32(extLen)
	for i := int32(idx.ExtensionSize); i > llimit; i-- {
		shift := uint(2 * (i - 1))
		code := (extWord & (0x3 << shift)) >> shift
		if shiftFw {
			mer = mer.ShiftForward(code)
			signedShift--
		} else {
			mer = mer.ShiftBackward(code)
			signedShift++
		}
	}

	km = mer.Canonical().Word
	hashIdx = idx.Hash.Lookup(km)
	if hashIdx >= idx.NumKmers {
		return 0, false, false
	}
	rank = idx.PresenceVec.Rank1(hashIdx)
	if idx.PresenceVec.Bit(hashIdx) != 1 {
		return 0, false, false
	}

	sampled := int64(idx.SampledPos.Get(rank))
	pos64 := sampled + signedShift
	if pos64 < 0 {
		return 0, false, false
	}
	return uint64(pos64), true, true
}

// getExtension decodes the i-th variable-length extension entry, returning
// its codeword left-aligned within ExtensionSize codes (so callers can
// extract codes from the high end down, matching the original encoding
// where shorter extensions are recorded with their codes toward the top of
// the word) and its code count.
func (idx *Index) getExtension(i uint64) (word uint64, length uint64) {
	start := idx.ExtBoundaries.Select1(i)
	var end uint64
	if i == idx.ExtBoundaries.Ones()-1 {
		end = idx.ExtBoundaries.Len()
	} else {
		end = idx.ExtBoundaries.Select1(i + 1)
	}
	length = end - start
	word = idx.ExtTable.GetInt(start*2, length*2)
	word <<= (uint64(idx.ExtensionSize) - length) * 2
	return word, length
}

// buildHit verifies the candidate position and, on success, resolves its
// unitig coordinates (contig index, relative offset, length) via the
// boundary bitvector, using and refreshing qc.
func (idx *Index) buildHit(original kmer.Kmer, pos uint64, didWalk bool, qc *QueryCache) ProjectedHit {
	if pos > idx.LastSeqPos {
		return emptyHit(idx.K)
	}
	fk := idx.Seq.GetInt(2*pos, uint64(idx.TwoK))
	keq := original.Equivalent(fk)
	if keq == kmer.NoMatch {
		return emptyHit(idx.K)
	}

	if didWalk && idx.K > 1 {
		if idx.ContigBoundary.GetInt(pos, uint64(idx.K-1)) != 0 {
			// The k-mer window crosses a unitig boundary: BoundaryCrossing,
			// treated as NotFound per the error taxonomy.
			return emptyHit(idx.K)
		}
	}

	rank := uint32(idx.ContigBoundary.Rank1(pos))

	var start, end uint64
	if qc != nil && rank == qc.PrevRank {
		start, end = qc.ContigStart, qc.ContigEnd
	} else {
		if rank == 0 {
			start = 0
		} else {
			start = idx.ContigBoundary.Select1(uint64(rank)-1) + 1
		}
		end = idx.ContigBoundary.Select1(uint64(rank))
		if qc != nil {
			qc.PrevRank = rank
			qc.ContigStart = start
			qc.ContigEnd = end
		}
	}

	relPos := uint32(pos - start)
	clen := uint32(end + 1 - start)
	hitFw := keq == kmer.Identity

	return ProjectedHit{
		ContigIdx:         rank,
		GlobalPos:         pos,
		ContigPos:         relPos,
		ContigOrientation: hitFw,
		ContigLen:         clen,
		K:                 idx.K,
		RefRange:          idx.Refs.ContigRange(rank),
	}
}
