// Package config holds the tunable parameters of the lookup and chaining
// core in one struct, threaded through memcollect.Collect and
// memchain.Chainer instead of being passed as separate arguments.
package config

// Opts holds the chaining and collection parameters a caller threads
// through memcollect.Collect and memchain.Chainer. Field names mirror the
// original CLI flag each one replaces; unlike fusion.Opts this set has no
// flag of its own yet (cmd/pufferfish's lookup/validate/examine
// subcommands don't chain), so the provenance comments name the flag for
// whenever an align subcommand is built out.
type Opts struct {
	// MaxAllowedRefsPerHit caps how many reference decodings a single hit
	// may contribute before memcollect.Collect drops it as uninformative.
	// C++: MemClusterer::setMaxAllowedRefsPerHit, no CLI flag (hardcoded).
	MaxAllowedRefsPerHit uint32

	// ConsensusFraction is the minimum MEM-count fraction, relative to the
	// best (reference, orientation) key seen so far, a key must reach to
	// still be chained. C++: --consensusFraction (default 0.65 per the
	// chaining loop's literal threshold).
	ConsensusFraction float64

	// MaxSpliceGap bounds the read/reference gap beta() will bridge;
	// anything wider scores negative infinity. C++: --maxSpliceGap.
	MaxSpliceGap uint32

	// HeuristicChaining stops an anchor's predecessor scan HeuristicBudget
	// rounds after its first predecessor link is found, instead of always
	// scanning every predecessor. C++: --heuristicChaining.
	HeuristicChaining bool

	// HeuristicBudget is the number of rounds HeuristicChaining allows
	// once a predecessor link has been found, matching the "2 rounds"
	// description of --heuristicChaining.
	HeuristicBudget int

	// AvgSeed is the seed-length estimate beta() scales its gap penalty
	// by; the original hardcodes 31.0 in MemClusterer::findOptChain
	// rather than exposing it as a flag.
	AvgSeed float64

	// Threads is the worker-pool parallelism. C++: -t/--threads
	// (default 8).
	Threads int
}

// DefaultOpts holds the original's hardcoded/default chaining parameters.
var DefaultOpts = Opts{
	MaxAllowedRefsPerHit: 1000,
	ConsensusFraction:    0.65,
	MaxSpliceGap:         100,
	HeuristicChaining:    false,
	HeuristicBudget:      2,
	AvgSeed:              31.0,
	Threads:              8,
}
