// Package workerpool implements the read-granularity parallelism of the
// concurrency model: a fixed number of workers, each owning its own
// reusable collection/chaining scratch state, processing disjoint shards
// of a read batch.
package workerpool

import (
	"context"

	"github.com/grailbio/base/traverse"

	"github.com/grailbio/pufferfish/config"
	"github.com/grailbio/pufferfish/memchain"
	"github.com/grailbio/pufferfish/memcollect"
)

// Read is one unit of work: a read's already-projected sparse-index hits
// (projection itself runs ahead of the pool, sharing nothing with
// chaining) plus the read length chaining needs for orientation-aware
// coordinate math.
type Read struct {
	ID   string
	Len  uint32
	Hits []memcollect.ReadHit
}

// Result is one read's chaining output.
type Result struct {
	ReadID   string
	Clusters memchain.MemClusterMap
}

// Pool runs FindOptChain over a batch of reads with shared-nothing
// per-worker scratch state: seq/rank/presence/... tables are read-only and
// shared, but memCollection, RefMemMap, and the chainer's DP buffers are
// private to each worker. The RefMemMap (cleared between reads) and the
// chainer's f/p/seen buffers are reused across the reads a worker is
// assigned; memCollection is not: memcollect.Collect allocates a new
// backing array for it on every read.
type Pool struct {
	Opts        config.Opts
	Parallelism int
}

// NewPool returns a Pool configured from opts, using opts.Threads as the
// worker count.
func NewPool(opts config.Opts) *Pool {
	return &Pool{Opts: opts, Parallelism: opts.Threads}
}

// Run chains every read in reads and returns one Result per read, in input
// order. Work is split into contiguous shards, one per worker, each
// processed by a single goroutine holding its own RefMemMap and
// memCollection — results are written into disjoint slice positions, so
// no cross-worker synchronization is needed beyond traverse.Each's own
// join. ctx is checked once per read, not inside chaining itself, since
// chaining a single read never blocks and a cancellation only needs to be
// observed before the next one starts.
func (p *Pool) Run(ctx context.Context, reads []Read) ([]Result, error) {
	if len(reads) == 0 {
		return nil, nil
	}
	parallelism := p.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	if parallelism > len(reads) {
		parallelism = len(reads)
	}

	results := make([]Result, len(reads))
	n := len(reads)
	err := traverse.Each(parallelism, func(workerIdx int) error {
		start := (workerIdx * n) / parallelism
		end := ((workerIdx + 1) * n) / parallelism
		if start >= end {
			return nil
		}

		chainer := memchain.NewChainerFromOpts(p.Opts)
		refMemMap := memcollect.RefMemMap{}
		var memCollection []memcollect.UniMemInfo

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := reads[i]
			for k := range refMemMap {
				delete(refMemMap, k)
			}
			memCollection = memCollection[:0]

			clusters := memchain.MemClusterMap{}
			chainer.FindOptChain(r.Hits, clusters, p.Opts.MaxSpliceGap, &memCollection, r.Len, nil, p.Opts.HeuristicChaining, refMemMap)
			results[i] = Result{ReadID: r.ID, Clusters: clusters}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
