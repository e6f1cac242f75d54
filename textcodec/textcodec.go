// Package textcodec maps the single-byte encoding id stored in a SAS7BDAT header to a
// golang.org/x/text decoder, so that STR cells and header strings (column names, labels,
// formats) are decoded with the codepage the writer actually used rather than assumed UTF-8.
package textcodec

import (
	"fmt"

	"github.com/OrganicProgramming/SAS-reader/errs"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// registry maps the encoding id read from the header (offset into a fixed SAS encoding table)
// to the decoder that reproduces it. Grounded in original_source's get_encoding_map/get_decoder:
// ids 29 (latin1), 20 (utf-8), 33 (cyrillic), 60 (wlatin2/windows-1250), 61 (wcyrillic) and
// 62 (wlatin1/windows-1252) are registered here. original_source also lists id 90 as
// "ebcdic870" (EBCDIC Multilingual/Latin-2), but golang.org/x/text/encoding/charmap has no
// CodePage870 — charmap.CodePage037 is a different EBCDIC code page (US/Canada) and would
// silently mis-decode rather than reproduce 870, so id 90 is left unregistered: a file
// declaring it falls back to Unresolved and fails loudly through ErrUnknownEncoding only if
// text decoding is actually attempted (spec.md 4.1/7), instead of decoding wrong bytes.
var registry = map[byte]encoding.Encoding{
	20: unicode.UTF8,
	29: charmap.ISO8859_1,
	33: charmap.KOI8R,
	60: charmap.Windows1250,
	61: charmap.Windows1251,
	62: charmap.Windows1252,
}

// Decoder turns codepage-encoded bytes into a Go string.
type Decoder struct {
	enc encoding.Encoding
	id  byte
}

// ForID looks up the decoder for a header encoding id.
func ForID(id byte) (*Decoder, error) {
	enc, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: encoding id %d", errs.ErrUnknownEncoding, id)
	}

	return &Decoder{enc: enc, id: id}, nil
}

// Unresolved builds a Decoder for a header encoding id that has no registered codec. Its
// existence lets header/metadata parsing proceed (spec.md 4.1: "unknown id is recorded but
// not fatal unless text decoding is attempted"); every call to Decode fails with
// errs.ErrUnknownEncoding until the caller supplies a real decoder.
func Unresolved(id byte) *Decoder {
	return &Decoder{enc: nil, id: id}
}

// ID reports the encoding id this decoder was built from.
func (d *Decoder) ID() byte {
	return d.id
}

// Decode converts raw codepage bytes into a UTF-8 Go string.
func (d *Decoder) Decode(raw []byte) (string, error) {
	if d.enc == nil {
		return "", fmt.Errorf("%w: encoding id %d has no registered codec", errs.ErrUnknownEncoding, d.id)
	}

	out, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrDecodeText, err)
	}

	return string(out), nil
}
