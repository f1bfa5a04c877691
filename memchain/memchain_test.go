package memchain

import (
	"testing"

	"github.com/grailbio/pufferfish/config"
	"github.com/grailbio/pufferfish/memcollect"
	"github.com/stretchr/testify/require"
)

func TestNewChainerFromOpts(t *testing.T) {
	c := NewChainerFromOpts(config.DefaultOpts)
	require.Equal(t, config.DefaultOpts.MaxAllowedRefsPerHit, c.MaxAllowedRefsPerHit)
	require.Equal(t, config.DefaultOpts.ConsensusFraction, c.ConsensusFraction)
	require.Equal(t, config.DefaultOpts.AvgSeed, c.AvgSeed)
	require.Equal(t, config.DefaultOpts.HeuristicBudget, c.HeuristicBudget)
}

func mem(rpos uint32, tpos uint64, extendedlen uint32, isFw bool) memcollect.MemInfo {
	return memcollect.MemInfo{Tpos: tpos, IsFw: isFw, ExtendedLen: extendedlen, Rpos: rpos}
}

func TestCompactionMerge(t *testing.T) {
	// Two abutting forward MEMs merge into one.
	memList := []memcollect.MemInfo{
		mem(10, 100, 31, true),
		mem(40, 130, 31, true),
	}
	out := compact(memList, true, 200)
	require.Len(t, out, 1)
	require.EqualValues(t, 10, out[0].Rpos)
	require.EqualValues(t, 100, out[0].Tpos)
	require.EqualValues(t, 61, out[0].ExtendedLen)
}

func TestCompactionNoMergeWhenDisjoint(t *testing.T) {
	memList := []memcollect.MemInfo{
		mem(0, 0, 20, true),
		mem(50, 50, 20, true),
	}
	out := compact(memList, true, 200)
	require.Len(t, out, 2)
}

func TestChainWithGap(t *testing.T) {
	// Three MEMs link into one chain; coverage=60, not perfect.
	memList := []memcollect.MemInfo{
		mem(0, 0, 20, true),
		mem(50, 50, 20, true),
		mem(120, 120, 20, true),
	}
	c := NewChainer(1000)
	clusters := c.chainOne(memList, 100, 200, false, true)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Mems, 3)
	require.Equal(t, 60.0, clusters[0].Coverage)
	require.False(t, clusters[0].PerfectChain)
}

func TestFindOptChainEmptyHitsReturnsFalse(t *testing.T) {
	c := NewChainer(1000)
	memClusters := MemClusterMap{}
	var memCollection []memcollect.UniMemInfo
	ok := c.FindOptChain(nil, memClusters, 100, &memCollection, 200, nil, false, memcollect.RefMemMap{})
	require.False(t, ok)
	require.Empty(t, memClusters)
}

func TestSpliceGapRejection(t *testing.T) {
	// Same three MEMs as the gap-linking case above, but the third is
	// beyond maxSpliceGap; only the first two MEMs chain, and the third's
	// own (non-best) single-anchor chain is never emitted since it does not
	// tie the global best score.
	memList := []memcollect.MemInfo{
		mem(0, 0, 20, true),
		mem(50, 50, 20, true),
		mem(250, 250, 20, true),
	}
	c := NewChainer(1000)
	clusters := c.chainOne(memList, 100, 200, false, true)
	require.Len(t, clusters, 1)
	require.Len(t, clusters[0].Mems, 2)
	require.Equal(t, 40.0, clusters[0].Coverage)
}

func TestTiedChainsBothEmittedDisjoint(t *testing.T) {
	// Two MEMs far enough apart that neither links to the other (beta is
	// infinite both ways); each is its own single-anchor chain, and both
	// tie at the same score, so both must be emitted with disjoint anchors.
	memList := []memcollect.MemInfo{
		mem(0, 0, 20, true),
		mem(500, 500, 20, true),
	}
	c := NewChainer(1000)
	clusters := c.chainOne(memList, 10, 600, false, true)
	require.Len(t, clusters, 2)
	require.Len(t, clusters[0].Mems, 1)
	require.Len(t, clusters[1].Mems, 1)
	require.NotEqual(t, clusters[0].Mems[0].Rpos, clusters[1].Mems[0].Rpos)
}

func TestChainOneEmptyInput(t *testing.T) {
	c := NewChainer(1000)
	clusters := c.chainOne(nil, 100, 200, false, true)
	require.Nil(t, clusters)
}

func TestAlphaCapsAtIlen(t *testing.T) {
	require.Equal(t, 20.0, alpha(100, 100, 20))
	require.Equal(t, 30.0, alpha(30, 100, 100))
}

func TestBetaInfiniteBeyondSpliceGap(t *testing.T) {
	require.True(t, beta(200, 200, 31, 100) > 1e300)
	require.Equal(t, 0.0, beta(5, 5, 31, 100))
}

func TestBetaNegativeQdiffIsInfinite(t *testing.T) {
	require.True(t, beta(-1, 5, 31, 100) > 1e300)
}
