// pufferfish is the command-line entry point for the sparse k-mer index
// lookup core: index loading plus the lookup/validate/examine
// subcommands. index construction and read alignment are out of the
// mapping core's scope (see the subcommand stubs below) and are not
// implemented here.
//
// Usage:
//
//	pufferfish index    ...   (stub: index construction is out of scope)
//	pufferfish align    ...   (stub: alignment/CIGAR emission is out of scope)
//	pufferfish lookup   -index <dir> -kmer <seq>
//	pufferfish validate -index <dir>
//	pufferfish examine  -index <dir>
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"

	"github.com/grailbio/pufferfish/kmer"
	"github.com/grailbio/pufferfish/pfidx"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pufferfish <command> [flags]

commands:
  index     build a new index (not implemented by this core)
  align     map reads against an index (not implemented by this core)
  lookup    project a single k-mer through an index
  validate  sanity-check an index directory
  examine   print summary statistics for an index directory`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cleanup := grail.Init()
	defer cleanup()

	var err error
	switch os.Args[1] {
	case "index":
		err = runIndex(os.Args[2:])
	case "align":
		err = runAlign(os.Args[2:])
	case "lookup":
		err = runLookup(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "examine":
		err = runExamine(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("pufferfish %s: %v", os.Args[1], err)
	}
}

// runIndex stubs out index construction: cdBG build, unitig enumeration,
// MPHF construction, and sampling selection are index-construction work,
// not part of this core.
func runIndex(args []string) error {
	return errors.E("index construction is not part of the mapping core")
}

// runAlign stubs out read alignment: CIGAR emission and full alignment
// scoring are non-goals of this core, which only implements k-mer lookup
// and MEM chaining.
func runAlign(args []string) error {
	return errors.E("read alignment is not part of the mapping core")
}

func runLookup(args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	indexDir := fs.String("index", "", "index directory")
	kmerSeq := fs.String("kmer", "", "k-mer sequence to project")
	gzipCtable := fs.Bool("gzip-ctable", false, "ctable.bin is gzip-compressed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *indexDir == "" || *kmerSeq == "" {
		return errors.E("lookup: -index and -kmer are required")
	}

	idx, err := pfidx.Load(*indexDir, pfidx.LoadOpts{GzipContigTable: *gzipCtable})
	if err != nil {
		return err
	}
	if len(*kmerSeq) != int(idx.K) {
		return errors.E(fmt.Sprintf("lookup: k-mer %q has length %d, index expects %d", *kmerSeq, len(*kmerSeq), idx.K))
	}
	codes, err := parseSeq(*kmerSeq)
	if err != nil {
		return err
	}

	hit := idx.Project(kmer.FromBases(codes))
	if hit.Empty() {
		fmt.Println("not found")
		return nil
	}
	fmt.Printf("contig=%d pos=%d fw=%v contigLen=%d refs=%d\n",
		hit.ContigIdx, hit.ContigPos, hit.ContigOrientation, hit.ContigLen, hit.RefRange.Size())
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	indexDir := fs.String("index", "", "index directory")
	gzipCtable := fs.Bool("gzip-ctable", false, "ctable.bin is gzip-compressed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *indexDir == "" {
		return errors.E("validate: -index is required")
	}

	idx, err := pfidx.Load(*indexDir, pfidx.LoadOpts{GzipContigTable: *gzipCtable})
	if err != nil {
		return err
	}
	if idx.NumSampledKmers > idx.NumKmers {
		return errors.E(fmt.Sprintf("validate: %d sampled k-mers exceeds %d total", idx.NumSampledKmers, idx.NumKmers))
	}
	if idx.PresenceVec.Ones() != idx.NumSampledKmers {
		return errors.E(fmt.Sprintf("validate: presence vector has %d set bits, info.json says %d sampled", idx.PresenceVec.Ones(), idx.NumSampledKmers))
	}
	if idx.Refs.NumContigs() == 0 {
		return errors.E("validate: reference table has zero contigs")
	}
	log.Printf("validate: ok (k=%d numKmers=%d numSampledKmers=%d numContigs=%d numRefs=%d)",
		idx.K, idx.NumKmers, idx.NumSampledKmers, idx.Refs.NumContigs(), idx.Refs.NumRefs())
	return nil
}

func runExamine(args []string) error {
	fs := flag.NewFlagSet("examine", flag.ExitOnError)
	indexDir := fs.String("index", "", "index directory")
	gzipCtable := fs.Bool("gzip-ctable", false, "ctable.bin is gzip-compressed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *indexDir == "" {
		return errors.E("examine: -index is required")
	}

	idx, err := pfidx.Load(*indexDir, pfidx.LoadOpts{GzipContigTable: *gzipCtable})
	if err != nil {
		return err
	}
	fmt.Printf("k: %d\n", idx.K)
	fmt.Printf("num_kmers: %d\n", idx.NumKmers)
	fmt.Printf("num_sampled_kmers: %d\n", idx.NumSampledKmers)
	fmt.Printf("extension_size: %d\n", idx.ExtensionSize)
	fmt.Printf("num_contigs: %d\n", idx.Refs.NumContigs())
	fmt.Printf("num_refs: %d\n", idx.Refs.NumRefs())
	return nil
}

func parseSeq(s string) ([]uint64, error) {
	codes := make([]uint64, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'A', 'a':
			codes[i] = kmer.BaseA
		case 'C', 'c':
			codes[i] = kmer.BaseC
		case 'G', 'g':
			codes[i] = kmer.BaseG
		case 'T', 't':
			codes[i] = kmer.BaseT
		default:
			return nil, errors.E(fmt.Sprintf("invalid base %q at position %d", s[i], i))
		}
	}
	return codes, nil
}
