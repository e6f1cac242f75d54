// Package compress implements the two per-row decompressors a SAS7BDAT file may declare:
// RLE ("SASYZCRL") and RDC ("SASYZCR2"). Both are pure functions over a single row's
// compressed span, not general-purpose byte-stream codecs — the decompressed output length
// is always known in advance (the row length) and is checked on return.
//
// Unlike the teacher's compress package, which wraps general-purpose Zstd/S2/LZ4 libraries for
// arbitrary payloads, SAS7BDAT's compression schemes are bespoke per-row algorithms with no
// off-the-shelf equivalent; see DESIGN.md for why the teacher's generic compressor
// dependencies have no component to bind to here.
package compress

import (
	"fmt"

	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
)

// Decompressor reproduces a single row's decompressed bytes from its compressed span.
type Decompressor func(decompressedLen int, in []byte) ([]byte, error)

// ForCompression returns the decompressor for the given compression kind, or an error if
// kind is format.CompressionNone (there is nothing to decompress) or unrecognized.
func ForCompression(kind format.Compression) (Decompressor, error) {
	switch kind {
	case format.CompressionRLE:
		return RLE, nil
	case format.CompressionRDC:
		return RDC, nil
	default:
		return nil, fmt.Errorf("%w: no decompressor for %s", errs.ErrGeometryInvariant, kind)
	}
}
