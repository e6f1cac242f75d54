// Package sas7bdat reads the SAS7BDAT binary tabular data format: a seekable byte stream in,
// a column schema and a lazy sequence of typed rows out.
//
// Open does all of the random-access work up front (header, then every metadata page) so
// that the returned Decoder's Next calls are then purely sequential. The format itself is
// undocumented and position-dependent; see the reader, header, subhdr, cell, and compress
// packages for the layer that does the actual parsing.
package sas7bdat

import (
	"io"

	"github.com/OrganicProgramming/SAS-reader/reader"
)

// Open parses rs as a complete SAS7BDAT file and returns a Decoder ready to emit rows via
// Next. rs must support Seek: the header and early metadata pages are read with a mix of
// seek-then-read and sequential page reads before the stream settles into purely sequential
// access for the remainder of the file (spec.md section 6).
func Open(rs io.ReadSeeker, opts ...reader.Option) (*reader.Decoder, error) {
	return reader.Open(rs, opts...)
}
