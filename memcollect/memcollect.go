// Package memcollect turns the per-read stream of sparse-index hits into a
// RefMemMap grouped by (reference, orientation), the input the MEM chainer
// consumes. It is the Go counterpart of MemClusterer::fillMemCollection in
// the original source: a single left-to-right pass that filters
// high-multiplicity hits and fans each surviving hit out across its
// reference decodings.
package memcollect

import (
	"github.com/grailbio/pufferfish/refdb"
	"github.com/grailbio/pufferfish/sparseindex"
)

// ReadEnd distinguishes which mate a UniMemInfo was derived from, carried
// through for paired-end callers (the chaining path itself is single-end).
type ReadEnd int

const (
	ReadEndLeft ReadEnd = iota
	ReadEndRight
)

// UniMemInfo is the per-hit record backing a read's MEM collection: the
// projected-hit fields needed by chaining, with GlobalUnitigStart
// precomputed so the chainer never has to re-derive it.
type UniMemInfo struct {
	ContigIdx         uint32
	ContigOrient      bool
	Rpos              uint32
	K                 uint32
	ContigPos         uint32
	GlobalUnitigStart uint64
	ContigLen         uint32
	ReadEnd           ReadEnd
}

// RefOrient keys the RefMemMap: a reference id together with the strand the
// hit decoded to.
type RefOrient struct {
	RefID uint32
	IsFw  bool
}

// MemInfo is one reference-decoding of a UniMemInfo. ExtendedLen and Rpos
// start out equal to the UniMemInfo's K and Rpos but are mutated in place
// by MEM compaction during chaining, so they live on MemInfo rather than
// being read through Mem on every access.
type MemInfo struct {
	Mem         *UniMemInfo
	Tpos        uint64
	IsFw        bool
	ExtendedLen uint32
	Rpos        uint32
}

// RefMemMap groups MemInfo entries by the (reference, orientation) they
// decoded to.
type RefMemMap map[RefOrient][]MemInfo

// ReadHit pairs a read-position with the sparse-index hit found there.
type ReadHit struct {
	ReadPos uint32
	Hit     sparseindex.ProjectedHit
}

// Collect fans hits out into refMemMap, appending one UniMemInfo per
// surviving hit to *memCollection and one MemInfo per reference decoding of
// that hit. otherEndRefs is accepted but not consulted by the current
// (single-end) admission rule; it exists so a paired-end caller can
// populate it without an API break, mirroring the original's commented-out
// high-multiplicity admission rule for mates (see DESIGN.md's open-question
// notes on why it stays disabled).
//
// memCollection is reserved to the exact surviving-hit count before any
// append, so every *UniMemInfo handed out in refMemMap remains valid for
// the lifetime of memCollection's backing array.
func Collect(hits []ReadHit, refMemMap RefMemMap, memCollection *[]UniMemInfo, readEnd ReadEnd, otherEndRefs map[uint32]bool, maxAllowedRefsPerHit uint32) bool {
	if len(hits) == 0 {
		return false
	}

	var totSize int
	for _, h := range hits {
		rs := h.Hit.RefRange.Size()
		if uint64(rs) < uint64(maxAllowedRefsPerHit) {
			totSize++
		}
	}

	out := make([]UniMemInfo, 0, totSize)
	for _, h := range hits {
		refs := h.Hit.RefRange
		if uint64(refs.Size()) >= uint64(maxAllowedRefsPerHit) {
			continue
		}
		out = append(out, UniMemInfo{
			ContigIdx:         h.Hit.ContigIdx,
			ContigOrient:      h.Hit.ContigOrientation,
			Rpos:              h.ReadPos,
			K:                 uint32(h.Hit.K),
			ContigPos:         h.Hit.ContigPos,
			GlobalUnitigStart: h.Hit.GlobalPos - uint64(h.Hit.ContigPos),
			ContigLen:         h.Hit.ContigLen,
			ReadEnd:           readEnd,
		})
		mem := &out[len(out)-1]
		refs.ForEach(func(e refdb.Entry) {
			key := RefOrient{RefID: e.RefID, IsFw: e.RefIsFw}
			refMemMap[key] = append(refMemMap[key], MemInfo{
				Mem:         mem,
				Tpos:        uint64(e.RefPos),
				IsFw:        e.RefIsFw,
				ExtendedLen: mem.K,
				Rpos:        mem.Rpos,
			})
		})
	}
	*memCollection = out
	return true
}
