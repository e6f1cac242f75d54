// Package cell decodes one column's raw byte span within a row into a row.Cell: right/left
// aligned IEEE-754 doubles for NUM columns (with DATE/DDMMYY/DATETIME format interpretation),
// and codepage-decoded strings for STR columns. Grounded in spec.md 4.5 and original_source's
// per-row value-assignment loop (lib.rs read_line, ~lines 895-925).
package cell

import (
	"fmt"
	"math"
	"time"

	"github.com/OrganicProgramming/SAS-reader/endian"
	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
	"github.com/OrganicProgramming/SAS-reader/row"
	"github.com/OrganicProgramming/SAS-reader/schema"
	"github.com/OrganicProgramming/SAS-reader/textcodec"
)

// dateFormats are the column formats that mean "this NUM column's value is a day count since
// the SAS epoch, not a plain double" (spec.md 4.5).
var dateFormats = map[string]bool{
	"DATE":   true,
	"DDMMYY": true,
}

const datetimeFormat = "DATETIME"

// Decoder decodes a single column's raw byte span according to the column's declared type and
// format, given the file's byte order and text codec.
type Decoder struct {
	engine      endian.EndianEngine
	text        *textcodec.Decoder
	trimStrings bool
}

// New builds a cell Decoder bound to the file's byte order and text codec.
func New(engine endian.EndianEngine, text *textcodec.Decoder, trimStrings bool) *Decoder {
	return &Decoder{engine: engine, text: text, trimStrings: trimStrings}
}

// Decode interprets raw (the column's exact byte span within a decompressed row) per col's
// declared type and format.
func (d *Decoder) Decode(col schema.Column, raw []byte) (row.Cell, error) {
	switch col.CType {
	case format.Numeric:
		return d.decodeNumeric(col, raw)
	case format.Text:
		return d.decodeText(raw)
	default:
		return row.Cell{}, fmt.Errorf("%w: column %q has unrecognized ctype %s", errs.ErrGeometryInvariant, col.Name, col.CType)
	}
}

func (d *Decoder) decodeNumeric(col schema.Column, raw []byte) (row.Cell, error) {
	var buf [8]byte
	if d.engine == endian.LittleEndian() {
		copy(buf[8-len(raw):], raw)
	} else {
		copy(buf[:len(raw)], raw)
	}

	bits := d.engine.Uint64(buf[:])
	value := math.Float64frombits(bits)

	switch {
	case dateFormats[col.Format]:
		if math.IsNaN(value) {
			return row.NewDate(format.SasEpoch), nil
		}
		days := math.Floor(value)
		return row.NewDate(format.SasEpoch.AddDate(0, 0, int(days))), nil
	case col.Format == datetimeFormat:
		if math.IsNaN(value) {
			return row.NewDateTime(format.SasEpoch), nil
		}
		secs := math.Floor(value)
		return row.NewDateTime(format.SasEpoch.Add(secondsToDuration(secs))), nil
	default:
		return row.NewNumeric(value), nil
	}
}

func (d *Decoder) decodeText(raw []byte) (row.Cell, error) {
	s, err := d.text.Decode(raw)
	if err != nil {
		return row.Cell{}, err
	}

	if d.trimStrings {
		s = trimTrailing(s)
	}

	return row.NewText(s), nil
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func trimTrailing(s string) string {
	for len(s) > 0 {
		c := s[len(s)-1]
		if c != 0x00 && c != ' ' {
			break
		}
		s = s[:len(s)-1]
	}

	return s
}
