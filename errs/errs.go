// Package errs collects the sentinel errors surfaced by the sas7bdat reader, so callers can
// use errors.Is against a stable, documented set instead of matching error strings.
package errs

import "errors"

// errSas7bdat is the base error every sentinel below wraps, so callers can also test
// errors.Is(err, errs.Base()) to recognize any error originating from this module.
var errSas7bdat = errors.New("sas7bdat")

var (
	// ErrBadMagic means the first 32 bytes of the file do not match the SAS7BDAT magic.
	ErrBadMagic = wrap("bad magic bytes, not a SAS7BDAT file")

	// ErrTruncated means a short read occurred where a header or page requires its full,
	// declared length.
	ErrTruncated = wrap("truncated file")

	// ErrGeometryInvariant means a structural invariant derived from the header or metadata
	// does not hold: a 64-bit file whose header length isn't 8192, a column-count mismatch
	// between ROW_SIZE and COL_SIZE, or a subheader signature that is unknown and does not
	// qualify for the compressed-data fallback.
	ErrGeometryInvariant = wrap("geometry invariant violated")

	// ErrUnknownEncoding means the header's encoding id has no registered text codec and a
	// string cell was decoded before the caller was told encoding was unspecified.
	ErrUnknownEncoding = wrap("unknown text encoding")

	// ErrDecodeText means bytes were not valid in the declared encoding.
	ErrDecodeText = wrap("text did not decode in declared encoding")

	// ErrBadControlByte means an RLE opcode's high nibble was not recognized.
	ErrBadControlByte = wrap("unrecognized RLE control byte")

	// ErrBadCommand means an RDC command nibble was not recognized.
	ErrBadCommand = wrap("unrecognized RDC command")

	// ErrDecompressedLength means a decompressor produced a byte count different from the
	// row length it was asked to reproduce.
	ErrDecompressedLength = wrap("decompressed length did not match expected row length")

	// ErrUnknownPageType means a page type outside {META, DATA, MIX, AMD} was encountered
	// while reading rows (as opposed to while walking metadata, where it is merely skipped).
	ErrUnknownPageType = wrap("unknown page type encountered while reading rows")

	// ErrNumericConversion means a signed-to-unsigned narrowing of a count field failed,
	// indicating a corrupt file.
	ErrNumericConversion = wrap("numeric field failed to convert, file may be corrupt")

	// ErrNoMoreRows is returned by Decoder.Next once the last row of the last page has been
	// emitted. It is the iterator's end-of-sequence sentinel, analogous to io.EOF.
	ErrNoMoreRows = wrap("no more rows")

	// ErrFailed names the decoder's failed terminal state. Decoder.Next does not return it:
	// after a failure, every later call returns the original error without re-reading the
	// underlying stream.
	ErrFailed = wrap("decoder already failed, see earlier error")
)

func wrap(msg string) error {
	return &sentinel{msg: msg}
}

// sentinel is a comparable error type whose Unwrap always points back at errSas7bdat, so
// errors.Is(err, errSas7bdat) recognizes any error defined in this package.
type sentinel struct {
	msg string
}

func (e *sentinel) Error() string { return "sas7bdat: " + e.msg }
func (e *sentinel) Unwrap() error { return errSas7bdat }

// Base returns this package's base error, letting errors.Is(err, errs.Base()) match any
// sentinel declared here.
func Base() error { return errSas7bdat }
