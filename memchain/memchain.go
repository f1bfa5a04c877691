// Package memchain implements the MEM chainer: MEM compaction followed by a
// Li-2018-style sparse dynamic-programming chain over each reference's
// accumulated hits, matching MemClusterer::findOptChain in the original
// source.
package memchain

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/grailbio/pufferfish/config"
	"github.com/grailbio/pufferfish/memcollect"
)

const (
	defaultConsensusFraction = 0.65
	defaultAvgSeed           = 31.0
	defaultHeuristicBudget   = 2

	// sentinelLen marks a MemInfo absorbed into a preceding one during
	// compaction, for removal in the same pass's cleanup step.
	sentinelLen = math.MaxUint32
)

// MemCluster is one chain of MEMs along a single reference and orientation.
type MemCluster struct {
	IsFw         bool
	ReadLen      uint32
	Mems         []memcollect.MemInfo
	Coverage     float64
	PerfectChain bool
}

// MemClusterMap collects the chains found per reference.
type MemClusterMap map[uint32][]MemCluster

// Chainer holds chaining configuration and reusable per-worker DP scratch
// buffers: f, p, and seen grow to the largest MEM list seen so far and are
// sliced back down per call, so repeated FindOptChain calls on one
// goroutine don't reallocate per read.
type Chainer struct {
	MaxAllowedRefsPerHit uint32
	ConsensusFraction    float64
	AvgSeed              float64
	HeuristicBudget      int

	f    []float64
	p    []int32
	seen []bool
}

// NewChainer returns a Chainer with the original's default consensus
// fraction, seed-length estimate, and heuristic chaining budget.
func NewChainer(maxAllowedRefsPerHit uint32) *Chainer {
	return &Chainer{
		MaxAllowedRefsPerHit: maxAllowedRefsPerHit,
		ConsensusFraction:    defaultConsensusFraction,
		AvgSeed:              defaultAvgSeed,
		HeuristicBudget:      defaultHeuristicBudget,
	}
}

// NewChainerFromOpts builds a Chainer from a caller-supplied config.Opts,
// for callers (workerpool) that thread one Opts value
// through the whole pipeline instead of passing chaining parameters
// individually. Opts.HeuristicChaining itself is consulted by the caller
// when it passes chainOne/FindOptChain's own heuristic argument; it is not
// stored on Chainer.
func NewChainerFromOpts(opts config.Opts) *Chainer {
	return &Chainer{
		MaxAllowedRefsPerHit: opts.MaxAllowedRefsPerHit,
		ConsensusFraction:    opts.ConsensusFraction,
		AvgSeed:              opts.AvgSeed,
		HeuristicBudget:      opts.HeuristicBudget,
	}
}

// FindOptChain collects hits into refMemMap (via memcollect.Collect), then
// chains each (reference, orientation) key's MEM list independently,
// appending results to memClusters. Returns false with no clusters produced
// for an empty hit list.
//
// Go maps iterate in randomized order, but the consensus filter's maxHits
// threshold is order-dependent (the original's hash-map iteration order is
// likewise unspecified by the standard, so this was never a portable
// guarantee); keys are visited in ascending (RefID, IsFw) order here for
// reproducible results rather than reproducing an accidental ordering.
func (c *Chainer) FindOptChain(
	hits []memcollect.ReadHit,
	memClusters MemClusterMap,
	maxSpliceGap uint32,
	memCollection *[]memcollect.UniMemInfo,
	readLen uint32,
	otherEndRefs map[uint32]bool,
	heuristic bool,
	refMemMap memcollect.RefMemMap,
) bool {
	if !memcollect.Collect(hits, refMemMap, memCollection, memcollect.ReadEndLeft, otherEndRefs, c.MaxAllowedRefsPerHit) {
		return false
	}

	keys := make([]memcollect.RefOrient, 0, len(refMemMap))
	for k := range refMemMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].RefID != keys[j].RefID {
			return keys[i].RefID < keys[j].RefID
		}
		return !keys[i].IsFw && keys[j].IsFw
	})

	var maxHits int
	for _, key := range keys {
		memList := refMemMap[key]
		n := len(memList)
		if float64(n) < c.ConsensusFraction*float64(maxHits) {
			continue
		}
		if n > maxHits {
			maxHits = n
		}

		sortMemList(memList, key.IsFw)
		clusters := c.chainOne(memList, maxSpliceGap, readLen, heuristic, key.IsFw)
		if len(clusters) > 0 {
			memClusters[key.RefID] = append(memClusters[key.RefID], clusters...)
		}
	}
	return true
}

func sortMemList(memList []memcollect.MemInfo, isFw bool) {
	sort.Slice(memList, func(i, j int) bool {
		ri := memList[i].Tpos + uint64(memList[i].ExtendedLen)
		rj := memList[j].Tpos + uint64(memList[j].ExtendedLen)
		if ri != rj {
			return ri < rj
		}
		qi := memList[i].Rpos + memList[i].ExtendedLen
		qj := memList[j].Rpos + memList[j].ExtendedLen
		if isFw {
			return qi < qj
		}
		return qi > qj
	})
}

// compact merges abutting/overlapping MEMs that, on the reference, would
// constitute one contiguous match but were split by a unitig boundary
// during lookup. memList must already be sorted by reference end position.
// It filters in place and returns the (possibly shorter) surviving slice.
func compact(memList []memcollect.MemInfo, isFw bool, readLen uint32) []memcollect.MemInfo {
	if len(memList) == 0 {
		return memList
	}
	var prevQEnd, prevREnd int32
	currentIdx := 0
	for i := range memList {
		hi := &memList[i]
		var qStart, qEnd int32
		if isFw {
			qStart = int32(hi.Rpos)
			qEnd = int32(hi.Rpos + hi.ExtendedLen)
		} else {
			qStart = int32(readLen) - int32(hi.Rpos+hi.ExtendedLen)
			qEnd = int32(readLen) - int32(hi.Rpos)
		}
		rStart := int32(hi.Tpos)
		rEnd := int32(hi.Tpos + hi.ExtendedLen)

		overlapRead := prevQEnd - qStart
		overlapRef := prevREnd - rStart
		if i > 0 && overlapRef >= 0 && overlapRef == overlapRead {
			last := &memList[currentIdx]
			last.ExtendedLen += uint32(rEnd - prevREnd)
			if !isFw {
				last.Rpos = hi.Rpos
			}
			hi.ExtendedLen = sentinelLen
		} else {
			currentIdx = i
		}
		prevQEnd, prevREnd = qEnd, rEnd
	}

	out := memList[:0]
	for _, m := range memList {
		if m.ExtendedLen != sentinelLen {
			out = append(out, m)
		}
	}
	return out
}

// alpha is the Li-2018 chaining reward: the overlap-free extension gained
// by linking i after j, capped by the anchor's own length.
func alpha(qdiff, rdiff, ilen int32) float64 {
	score := float64(ilen)
	mindiff := float64(qdiff)
	if rdiff < qdiff {
		mindiff = float64(rdiff)
	}
	if score < mindiff {
		return score
	}
	return mindiff
}

// beta is the gap penalty; infinite for a negative or over-wide splice gap,
// otherwise a length-scaled log penalty on the read/reference gap mismatch.
func beta(qdiff, rdiff int32, avgseed float64, maxSpliceGap uint32) float64 {
	m := qdiff
	if rdiff > m {
		m = rdiff
	}
	if qdiff < 0 || uint32(m) > maxSpliceGap {
		return math.Inf(1)
	}
	l := qdiff - rdiff
	al := l
	if al < 0 {
		al = -al
	}
	if al == 0 {
		return 0
	}
	return 0.05*avgseed*float64(al) + 0.5*math.Log2(float64(al))
}

// chainOne compacts, then chains, a single (reference, orientation) key's
// already-sorted MEM list, returning every tied best-scoring chain as a
// MemCluster.
func (c *Chainer) chainOne(memList []memcollect.MemInfo, maxSpliceGap uint32, readLen uint32, heuristic bool, isFw bool) []MemCluster {
	memList = compact(memList, isFw, readLen)
	n := len(memList)
	if n == 0 {
		return nil
	}

	if cap(c.f) < n {
		c.f = make([]float64, n)
		c.p = make([]int32, n)
		c.seen = make([]bool, n)
	}
	f := c.f[:n]
	p := c.p[:n]
	seen := c.seen[:n]
	for i := range seen {
		seen[i] = false
	}

	const bottomScore = -math.MaxFloat64
	bestScore := bottomScore
	var bestChainEndList []int32

	for i := 0; i < n; i++ {
		hi := memList[i]
		qi := int32(hi.Rpos + hi.ExtendedLen)
		ri := int32(hi.Tpos + hi.ExtendedLen)
		f[i] = float64(hi.ExtendedLen)
		p[i] = int32(i)

		rounds := c.HeuristicBudget
		for j := i - 1; j >= 0; j-- {
			hj := memList[j]
			qj := int32(hj.Rpos + hj.ExtendedLen)
			rj := int32(hj.Tpos + hj.ExtendedLen)

			var qdiff int32
			if isFw {
				qdiff = qi - qj
			} else {
				qdiff = (qj - int32(hj.ExtendedLen)) - (qi - int32(hi.ExtendedLen))
			}
			rdiff := ri - rj

			score := f[j] + alpha(qdiff, rdiff, int32(hi.ExtendedLen)) - beta(qdiff, rdiff, c.AvgSeed, maxSpliceGap)
			if score > f[i] {
				f[i] = score
				p[i] = int32(j)
			}

			if heuristic && p[i] < int32(i) {
				rounds--
				if rounds <= 0 {
					break
				}
			}
			// Further predecessors are only more distant once memList is
			// sorted by reference end position, so this is safe to break on.
			if rdiff > int32(2*readLen) {
				break
			}
		}

		switch {
		case f[i] > bestScore:
			bestScore = f[i]
			bestChainEndList = bestChainEndList[:0]
			bestChainEndList = append(bestChainEndList, int32(i))
		case f[i] == bestScore:
			bestChainEndList = append(bestChainEndList, int32(i))
		}
	}

	if len(bestChainEndList) == 0 {
		log.Panicf("memchain: no valid chain found for %d hits, bestScore=%v", n, bestScore)
	}

	var clusters []MemCluster
	for _, end := range bestChainEndList {
		indicesRev, ok := backtrack(p, seen, end)
		if !ok {
			continue
		}
		mems := make([]memcollect.MemInfo, len(indicesRev))
		for k, idx := range indicesRev {
			mems[len(indicesRev)-1-k] = memList[idx]
		}
		mems = compact(mems, isFw, readLen)
		clusters = append(clusters, MemCluster{
			IsFw:         isFw,
			ReadLen:      readLen,
			Mems:         mems,
			Coverage:     bestScore,
			PerfectChain: bestScore == float64(readLen),
		})
	}
	return clusters
}

// backtrack walks predecessor pointers from end back to a self-loop,
// collecting the path in reverse (end-to-start) order. It discards the
// path (ok=false) if any anchor on it was already claimed by an earlier
// tie, matching the original's seen-bitmap/earlier-tie-wins rule.
func backtrack(p []int32, seen []bool, end int32) (indicesRev []int32, ok bool) {
	ok = true
	cur := end
	last := p[cur]
	for last < cur {
		if seen[cur] {
			ok = false
		}
		indicesRev = append(indicesRev, cur)
		seen[cur] = true
		cur = last
		last = p[cur]
	}
	if seen[cur] {
		ok = false
	}
	indicesRev = append(indicesRev, cur)
	seen[cur] = true
	return indicesRev, ok
}
