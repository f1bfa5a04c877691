package pfidx

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// newGzipReader wraps r in a gzip reader, matching encoding/bam/gindex.go's
// use of klauspost/compress/gzip for its own compressed index variant.
func newGzipReader(r io.Reader) (io.ReadCloser, error) {
	return gzip.NewReader(r)
}
