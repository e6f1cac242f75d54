// Package row holds the decoded, caller-facing value types produced per cell and per row:
// the tagged Cell union (Numeric, Text, Date, DateTime) mirroring original_source's SasVal
// enum, and Row, the ordered slice of cells emitted by a single call to Decoder.Next.
package row

import (
	"fmt"
	"time"
)

// Kind identifies which accessor on a Cell is valid.
type Kind uint8

const (
	KindNumeric Kind = iota
	KindText
	KindDate
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "Numeric"
	case KindText:
		return "Text"
	case KindDate:
		return "Date"
	case KindDateTime:
		return "DateTime"
	default:
		return "Unknown"
	}
}

// Cell is one decoded column value. Exactly one of the typed accessors is valid, selected by
// Kind: Numeric/Text carry raw values, Date/DateTime carry a SAS numeric value (days for Date,
// seconds for DateTime) already converted to a calendar date or UTC timestamp by the cell
// decoder.
type Cell struct {
	kind  Kind
	num   float64
	text  string
	date  time.Time
}

// NewNumeric builds a Numeric cell. NaN is a valid value: it is how SAS encodes missing.
func NewNumeric(v float64) Cell { return Cell{kind: KindNumeric, num: v} }

// NewText builds a Text cell from an already-decoded string.
func NewText(s string) Cell { return Cell{kind: KindText, text: s} }

// NewDate builds a Date cell from a calendar date (time-of-day is always midnight UTC).
func NewDate(t time.Time) Cell { return Cell{kind: KindDate, date: t} }

// NewDateTime builds a DateTime cell from a UTC instant.
func NewDateTime(t time.Time) Cell { return Cell{kind: KindDateTime, date: t} }

// Kind reports which accessor is valid for this cell.
func (c Cell) Kind() Kind { return c.kind }

// Numeric returns the cell's float64 value. Panics if Kind is not KindNumeric.
func (c Cell) Numeric() float64 {
	if c.kind != KindNumeric {
		panic(fmt.Sprintf("row: Numeric called on %s cell", c.kind))
	}

	return c.num
}

// Text returns the cell's decoded string. Panics if Kind is not KindText.
func (c Cell) Text() string {
	if c.kind != KindText {
		panic(fmt.Sprintf("row: Text called on %s cell", c.kind))
	}

	return c.text
}

// Date returns the cell's calendar date (year, month, day; time-of-day is midnight UTC).
// Panics if Kind is not KindDate.
func (c Cell) Date() (year int, month time.Month, day int) {
	if c.kind != KindDate {
		panic(fmt.Sprintf("row: Date called on %s cell", c.kind))
	}

	y, m, d := c.date.Date()

	return y, m, d
}

// DateTime returns the cell's UTC instant. Panics if Kind is not KindDateTime.
func (c Cell) DateTime() time.Time {
	if c.kind != KindDateTime {
		panic(fmt.Sprintf("row: DateTime called on %s cell", c.kind))
	}

	return c.date
}

// Row is an ordered sequence of cells, one per column, in column-id order. A short Row (fewer
// cells than the schema's column count) means the end-of-record sentinel (data_length=0) was
// hit partway through the row; later columns have no value for that row.
type Row []Cell
