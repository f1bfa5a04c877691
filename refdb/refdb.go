// Package refdb implements the read-side reference-table interface backing
// ProjectedHit.RefRange: decoding which (reference, position, orientation)
// triples a given unitig corresponds to, and reference name/length lookups.
// Table construction (building uref.bin/upos.bin/ctable.bin) is index-
// construction work and out of scope here; this package only reads them.
package refdb

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/pufferfish/bitpack"
)

// Entry is a single (reference, position, orientation) decoding of a
// unitig occurrence.
type Entry struct {
	RefID   uint32
	RefPos  uint32
	RefIsFw bool
}

// RefRange is a lazy iterator over a contig's reference decodings, backed
// by the packed uref.bin/upos.bin tables. It is cheap to construct (no
// allocation) and is only materialized when the caller actually iterates,
// matching the "lazy iterator over (refId, refPos, refIsFw) decodings"
// contract of ProjectedHit.refRange.
type RefRange struct {
	db    *DB
	start uint64 // inclusive index into uref/upos
	end   uint64 // exclusive
}

// Size returns the number of reference decodings in the range, used by the
// maxAllowedRefsPerHit filter without materializing any entries.
func (r RefRange) Size() int { return int(r.end - r.start) }

// Empty reports whether the range has zero decodings.
func (r RefRange) Empty() bool { return r.end <= r.start }

// ForEach calls fn for each decoding in the range, in table order.
func (r RefRange) ForEach(fn func(Entry)) {
	for i := r.start; i < r.end; i++ {
		fn(r.db.decode(i))
	}
}

// All materializes the range into a slice; prefer ForEach on hot paths.
func (r RefRange) All() []Entry {
	out := make([]Entry, 0, r.Size())
	r.ForEach(func(e Entry) { out = append(out, e) })
	return out
}

// DB is the loaded contig/reference table set: per-contig reference
// occurrence tables (uref/upos), per-contig offsets into them, reference
// names, and reference length tables.
type DB struct {
	refNames []string
	refExt   []string // per-reference extension metadata (e.g. decoy tag), opaque to the core

	uref bitpack.Vector // refID per occurrence
	upos bitpack.Vector // packed (refPos<<1 | isFw) per occurrence

	contigOffsets bitpack.Vector // numContigs+1 entries into uref/upos

	refLengths         []uint32
	refAccumLengths    []uint64
	completeRefLengths []uint64
}

func (d *DB) decode(i uint64) Entry {
	refID := uint32(d.uref.Get(i))
	packed := d.upos.Get(i)
	return Entry{
		RefID:   refID,
		RefPos:  uint32(packed >> 1),
		RefIsFw: packed&1 == 1,
	}
}

// ContigRange returns the RefRange for the contig with the given rank
// (dense unitig ordinal), matching the original's contigRange(rank) helper.
func (d *DB) ContigRange(contigRank uint32) RefRange {
	start := d.contigOffsets.Get(uint64(contigRank))
	end := d.contigOffsets.Get(uint64(contigRank) + 1)
	return RefRange{db: d, start: start, end: end}
}

// NumContigs returns the number of unitigs the contig-offset table covers.
func (d *DB) NumContigs() int {
	if d.contigOffsets.Len() == 0 {
		return 0
	}
	return int(d.contigOffsets.Len() - 1)
}

// NumRefs returns the number of named references.
func (d *DB) NumRefs() int { return len(d.refNames) }

// RefName returns the name of reference refID.
func (d *DB) RefName(refID uint32) string { return d.refNames[refID] }

// RefLen returns the (possibly decoy-padded) length used for chaining
// bounds of reference refID.
func (d *DB) RefLen(refID uint32) uint32 { return d.refLengths[refID] }

// CompleteRefLen returns the full, non-padded reference length.
func (d *DB) CompleteRefLen(refID uint32) uint64 { return d.completeRefLengths[refID] }

// RefAccumLen returns the cumulative length of all references before refID,
// used by callers that map unitig-local coordinates into a single flat
// reference coordinate space.
func (d *DB) RefAccumLen(refID uint32) uint64 { return d.refAccumLengths[refID] }

// Load reads the contig table (ref names via a length-prefixed string
// table, then uref/upos/contig-offset bit-packed vectors, then the three
// length tables) from the given readers, matching the on-disk layout of
// ctable.bin/uref.bin/upos.bin/contig_offsets.bin/reflengths.bin/
// refAccumLengths.bin/completeRefLengths.bin.
func Load(ctable, uref, upos, contigOffsets, reflengths, refAccumLengths, completeRefLengths io.Reader) (*DB, error) {
	d := &DB{}
	names, ext, err := readNameTable(ctable)
	if err != nil {
		return nil, fmt.Errorf("refdb: loading ctable: %w", err)
	}
	d.refNames = names
	d.refExt = ext

	if err := d.uref.Deserialize(uref); err != nil {
		return nil, fmt.Errorf("refdb: loading uref table: %w", err)
	}
	if err := d.upos.Deserialize(upos); err != nil {
		return nil, fmt.Errorf("refdb: loading upos table: %w", err)
	}
	if err := d.contigOffsets.Deserialize(contigOffsets); err != nil {
		return nil, fmt.Errorf("refdb: loading contig offsets: %w", err)
	}

	d.refLengths, err = readUint32Table(reflengths, len(names))
	if err != nil {
		return nil, fmt.Errorf("refdb: loading reference lengths: %w", err)
	}
	d.refAccumLengths, err = readUint64Table(refAccumLengths, len(names))
	if err != nil {
		return nil, fmt.Errorf("refdb: loading reference accumulated lengths: %w", err)
	}
	d.completeRefLengths, err = readUint64Table(completeRefLengths, len(names))
	if err != nil {
		return nil, fmt.Errorf("refdb: loading complete reference lengths: %w", err)
	}
	return d, nil
}

func readNameTable(r io.Reader) ([]string, []string, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, nil, err
	}
	names := make([]string, count)
	ext := make([]string, count)
	for i := range names {
		n, err := readLengthPrefixedString(r)
		if err != nil {
			return nil, nil, err
		}
		names[i] = n
	}
	for i := range ext {
		n, err := readLengthPrefixedString(r)
		if err != nil {
			return nil, nil, err
		}
		ext[i] = n
	}
	return names, ext, nil
}

func readLengthPrefixedString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func readUint32Table(r io.Reader, n int) ([]uint32, error) {
	out := make([]uint32, n)
	if n == 0 {
		return out, nil
	}
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readUint64Table(r io.Reader, n int) ([]uint64, error) {
	out := make([]uint64, n)
	if n == 0 {
		return out, nil
	}
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}
