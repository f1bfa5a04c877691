// Package pfidx loads an on-disk sparse k-mer index directory into a
// sparseindex.Index. It is the read side of the original index format: a
// plain directory of small binary artifacts plus an info.json header,
// loaded once at startup and handed to callers as immutable shared state.
// Building the directory (cdBG construction, unitig enumeration, MPHF
// construction, sampling selection) is out of scope; this package only
// reads what construction produced.
package pfidx

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"

	"github.com/grailbio/pufferfish/bitpack"
	"github.com/grailbio/pufferfish/mphf"
	"github.com/grailbio/pufferfish/rankselect"
	"github.com/grailbio/pufferfish/refdb"
	"github.com/grailbio/pufferfish/sparseindex"
)

// info holds info.json's key-value header.
type info struct {
	K               uint8  `json:"k"`
	NumKmers        uint64 `json:"num_kmers"`
	NumSampledKmers uint64 `json:"num_sampled_kmers"`
	ExtensionSize   uint32 `json:"extension_size"`
	HaveEdgeVec     bool   `json:"have_edge_vec"`
	HaveRefSeq      bool   `json:"have_ref_seq"`
	NumDecoys       uint32 `json:"num_decoys"`
	FirstDecoyIndex uint32 `json:"first_decoy_index"`
}

// LoadOpts controls how Load handles the directory's optional artifacts.
type LoadOpts struct {
	// GzipContigTable reads ctable.bin through a gzip.Reader, for index
	// directories that ship a compressed contig-table blob.
	GzipContigTable bool
}

// Load reads dir's on-disk index artifacts into a sparseindex.Index. Any
// missing required artifact or malformed header is reported as a wrapped
// error; it never panics (a panic here would crash a CLI invocation over a
// bad path argument, not an internal invariant violation).
func Load(dir string, opts LoadOpts) (*sparseindex.Index, error) {
	hdr, err := loadInfo(filepath.Join(dir, "info.json"))
	if err != nil {
		return nil, err
	}
	log.Printf("pfidx: loading index %s: k=%d numKmers=%d numSampledKmers=%d", dir, hdr.K, hdr.NumKmers, hdr.NumSampledKmers)

	hash := &mphf.TableHasher{}
	if err := loadArtifact(dir, "mphf.bin", hash.Deserialize); err != nil {
		return nil, err
	}

	var seq, sampledPos, extTable, extSize bitpack.Vector
	for _, a := range []struct {
		name string
		fn   func(io.Reader) error
	}{
		{"seq.bin", seq.Deserialize},
		{"sample_pos.bin", sampledPos.Deserialize},
		{"extension_bp.bin", extTable.Deserialize},
		{"extension_size.bin", extSize.Deserialize},
	} {
		if err := loadArtifact(dir, a.name, a.fn); err != nil {
			return nil, err
		}
	}

	var contigBoundary, presence, extBoundaries, direction, canonical rankselect.Bitvector
	for _, a := range []struct {
		name string
		bv   *rankselect.Bitvector
	}{
		{"rank.bin", &contigBoundary},
		{"presence.bin", &presence},
		{"extension_bound.bin", &extBoundaries},
		{"direction.bin", &direction},
		{"canonical.bin", &canonical},
	} {
		if err := loadArtifact(dir, a.name, a.bv.Deserialize); err != nil {
			return nil, err
		}
	}

	// extension.bin is the legacy combined extension table, superseded by
	// extension_bp.bin/extension_bound.bin/extension_size.bin; this loader
	// never reads it, but an index directory carrying both is not an error.
	if _, err := os.Stat(filepath.Join(dir, "extension.bin")); err != nil && !os.IsNotExist(err) {
		return nil, errors.E(err, fmt.Sprintf("pfidx: stat %s/extension.bin", dir))
	}

	refs, err := loadRefs(dir, opts)
	if err != nil {
		return nil, err
	}

	if seq.Len() < uint64(hdr.K) {
		return nil, errors.E(fmt.Sprintf("pfidx: %s: seq.bin has %d bases, shorter than k=%d", dir, seq.Len(), hdr.K))
	}

	idx := &sparseindex.Index{
		K:               hdr.K,
		TwoK:            uint16(2 * hdr.K),
		NumKmers:        hdr.NumKmers,
		NumSampledKmers: hdr.NumSampledKmers,
		ExtensionSize:   hdr.ExtensionSize,

		Hash: hash,

		Seq:            seq,
		LastSeqPos:     seq.Len() - uint64(hdr.K),
		ContigBoundary: &contigBoundary,
		PresenceVec:    &presence,
		SampledPos:     sampledPos,

		ExtTable:      extTable,
		ExtBoundaries: &extBoundaries,
		ExtSize:       extSize,
		DirectionVec:  &direction,
		CanonicalNess: &canonical,

		Refs: refs,
	}
	return idx, nil
}

func loadInfo(path string) (*info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("pfidx: opening %s", path))
	}
	defer f.Close()
	var hdr info
	if err := json.NewDecoder(f).Decode(&hdr); err != nil {
		return nil, errors.E(err, fmt.Sprintf("pfidx: decoding %s", path))
	}
	if hdr.K == 0 {
		return nil, errors.E(fmt.Sprintf("pfidx: %s: k is zero or missing", path))
	}
	return &hdr, nil
}

// loadArtifact opens dir/name and hands it to fn, wrapping any open or
// parse error with the artifact's path for a diagnosable IndexCorruption
// report.
func loadArtifact(dir, name string, fn func(io.Reader) error) error {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return errors.E(err, fmt.Sprintf("pfidx: opening %s", path))
	}
	defer f.Close()
	if err := fn(f); err != nil {
		return errors.E(err, fmt.Sprintf("pfidx: parsing %s", path))
	}
	return nil
}

func loadRefs(dir string, opts LoadOpts) (*refdb.DB, error) {
	ctable, closeCtable, err := openContigTable(dir, opts)
	if err != nil {
		return nil, err
	}
	defer closeCtable()

	files := []string{"uref.bin", "upos.bin", "contig_offsets.bin", "reflengths.bin", "refAccumLengths.bin", "completeRefLengths.bin"}
	readers := make([]io.Reader, len(files))
	for i, name := range files {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.E(err, fmt.Sprintf("pfidx: opening %s", path))
		}
		defer f.Close()
		readers[i] = f
	}

	db, err := refdb.Load(ctable, readers[0], readers[1], readers[2], readers[3], readers[4], readers[5])
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("pfidx: loading reference tables from %s", dir))
	}
	return db, nil
}

// openContigTable opens ctable.bin, optionally wrapped in a gzip.Reader for
// index directories built with a compressed contig table, and returns a
// closer that releases every layer it opened.
func openContigTable(dir string, opts LoadOpts) (io.Reader, func(), error) {
	path := filepath.Join(dir, "ctable.bin")
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.E(err, fmt.Sprintf("pfidx: opening %s", path))
	}
	if !opts.GzipContigTable {
		return f, func() { f.Close() }, nil
	}
	gz, err := newGzipReader(f)
	if err != nil {
		f.Close()
		return nil, nil, errors.E(err, fmt.Sprintf("pfidx: %s: not a valid gzip stream", path))
	}
	return gz, func() { gz.Close(); f.Close() }, nil
}
