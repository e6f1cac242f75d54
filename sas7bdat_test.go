package sas7bdat_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
	"github.com/OrganicProgramming/SAS-reader/reader"
	"github.com/OrganicProgramming/SAS-reader/row"
	sas7bdat "github.com/OrganicProgramming/SAS-reader"
)

// sas7bdat file-format constants used by the fixture builder below (spec.md 4.1/4.2/6);
// mirrored here rather than imported since the header/reader packages keep them unexported.
const (
	magicOffset   = 0
	u64FlagOffset = 32
	align2Offset  = 35
	endianOffset  = 37
	encodingOff   = 70
	datasetOffset = 92
	dateCreateOff = 164
	dateModOff    = 172
	hdrSizeOff    = 196
	pageSizeOff   = 200
	pageCountOff  = 204
	sasReleaseOff = 216
	serverTypeOff = 224
	osNameOff     = 272

	pageBitOffset = 16
	subhdrPtrBase = 24 // pageBitOffset + 8
	ptrWidth      = 12
)

var magic32 = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xc2, 0xea, 0x81, 0x60, 0xb3, 0x14, 0x11, 0xcf, 0xbd, 0x92, 0x08, 0x00,
	0x09, 0xc7, 0x31, 0x8c, 0x18, 0x1f, 0x10, 0x11,
}

// subheader signatures (32-bit forms), as read verbatim off the wire.
var (
	sigRowSize  = []byte{0xF7, 0xF7, 0xF7, 0xF7}
	sigColSize  = []byte{0xF6, 0xF6, 0xF6, 0xF6}
	sigColText  = []byte{0xFD, 0xFF, 0xFF, 0xFF}
	sigColName  = []byte{0xFF, 0xFF, 0xFF, 0xFF}
	sigColAttr  = []byte{0xFC, 0xFF, 0xFF, 0xFF}
	sigFmtLabel = []byte{0xFE, 0xFB, 0xFF, 0xFF}
)

// subheaderPtr describes one entry to write into a META page's subheader pointer array.
type subheaderPtr struct {
	offset, length   int
	compression, typ byte
}

// putPointer writes one 12-byte (32-bit) subheader pointer record at page[base+i*ptrWidth:].
func putPointer(page []byte, i int, p subheaderPtr) {
	base := subhdrPtrBase + i*ptrWidth
	binary.LittleEndian.PutUint32(page[base:], uint32(p.offset))
	binary.LittleEndian.PutUint32(page[base+4:], uint32(p.length))
	page[base+8] = p.compression
	page[base+9] = p.typ
}

// putPageHeader writes the page-type/block-count/subheader-count triple at pageBitOffset.
func putPageHeader(page []byte, pageType int16, blockCount, subHdrCount uint16) {
	binary.LittleEndian.PutUint16(page[pageBitOffset:], uint16(pageType))
	binary.LittleEndian.PutUint16(page[pageBitOffset+2:], blockCount)
	binary.LittleEndian.PutUint16(page[pageBitOffset+4:], subHdrCount)
}

// buildUncompressedFile constructs a complete, valid, 32-bit little-endian, uncompressed
// SAS7BDAT file: a 1024-byte header, one META page carrying a two-column schema (id: NUM 8,
// name: STR 10; row_length 18), and one DATA page carrying 3 literal rows. This is scenario
// S1 from spec.md section 8.
func buildUncompressedFile(t *testing.T) []byte {
	t.Helper()

	const (
		headerLen = 1024
		pageLen   = 4096
	)

	buf := make([]byte, headerLen+2*pageLen)

	// --- Header ---
	copy(buf[magicOffset:], magic32)
	buf[endianOffset] = 0x01
	buf[encodingOff] = 20 // UTF-8
	copy(buf[datasetOffset:], "TESTDS")
	binary.LittleEndian.PutUint64(buf[dateCreateOff:], 0)
	binary.LittleEndian.PutUint64(buf[dateModOff:], 0)
	binary.LittleEndian.PutUint32(buf[hdrSizeOff:], headerLen)
	binary.LittleEndian.PutUint32(buf[pageSizeOff:], pageLen)
	binary.LittleEndian.PutUint32(buf[pageCountOff:], 2)
	copy(buf[sasReleaseOff:], "9.0401M")
	copy(buf[serverTypeOff:], "XPC")
	copy(buf[osNameOff:], "Linux")

	// --- META page ---
	meta := buf[headerLen : headerLen+pageLen]
	putPageHeader(meta, 0 /* META */, 1, 7)

	putPointer(meta, 0, subheaderPtr{offset: 150, length: 400})  // ROW_SIZE
	putPointer(meta, 1, subheaderPtr{offset: 700, length: 20})   // COL_SIZE
	putPointer(meta, 2, subheaderPtr{offset: 800, length: 40})   // COL_TEXT
	putPointer(meta, 3, subheaderPtr{offset: 900, length: 36})   // COL_NAME
	putPointer(meta, 4, subheaderPtr{offset: 1000, length: 44})  // COL_ATTR
	putPointer(meta, 5, subheaderPtr{offset: 1100, length: 40})  // FMT_LABEL (id)
	putPointer(meta, 6, subheaderPtr{offset: 1150, length: 40})  // FMT_LABEL (name)

	// ROW_SIZE (subOff=150): row_length=18, row_count=3, col_count_p1=2, col_count_p2=0,
	// mix_page_row_count=3, lcs=lcp=0 (uncompressed).
	const rowSizeOff = 150
	copy(meta[rowSizeOff:], sigRowSize)
	off := rowSizeOff + 4
	binary.LittleEndian.PutUint32(meta[off+5*4:], 18) // row_length
	binary.LittleEndian.PutUint32(meta[off+6*4:], 3)  // row_count
	binary.LittleEndian.PutUint32(meta[off+9*4:], 2)  // col_count_p1
	binary.LittleEndian.PutUint32(meta[off+10*4:], 0) // col_count_p2
	binary.LittleEndian.PutUint32(meta[off+15*4:], 3) // mix_page_row_count
	binary.LittleEndian.PutUint16(meta[rowSizeOff+354:], 0)
	binary.LittleEndian.PutUint16(meta[rowSizeOff+378:], 0)

	// COL_SIZE (subOff=700): col_count=2.
	const colSizeOff = 700
	copy(meta[colSizeOff:], sigColSize)
	binary.LittleEndian.PutUint32(meta[colSizeOff+4:], 2)

	// COL_TEXT (subOff=800): pool = "idname".
	const colTextOff = 800
	copy(meta[colTextOff:], sigColText)
	binary.LittleEndian.PutUint16(meta[colTextOff+4:], 6)
	copy(meta[colTextOff+6:], "idname")

	// COL_NAME (subOff=900): two name pointers into the pool ("id" then "name").
	const colNameOff = 900
	copy(meta[colNameOff:], sigColName)
	nameBase := colNameOff + 4
	binary.LittleEndian.PutUint16(meta[nameBase+8:], 0) // ptr0 text-pool idx
	binary.LittleEndian.PutUint16(meta[nameBase+10:], 0) // ptr0 offset
	binary.LittleEndian.PutUint16(meta[nameBase+12:], 2) // ptr0 length ("id")
	binary.LittleEndian.PutUint16(meta[nameBase+16:], 0) // ptr1 text-pool idx
	binary.LittleEndian.PutUint16(meta[nameBase+18:], 2) // ptr1 offset
	binary.LittleEndian.PutUint16(meta[nameBase+20:], 4) // ptr1 length ("name")

	// COL_ATTR (subOff=1000): id at [0:8) NUM, name at [8:18) STR.
	const colAttrOff = 1000
	copy(meta[colAttrOff:], sigColAttr)
	binary.LittleEndian.PutUint32(meta[colAttrOff+12:], 0) // id data_offset
	binary.LittleEndian.PutUint32(meta[colAttrOff+16:], 8) // id data_length
	meta[colAttrOff+22] = 1                                // id ctype NUM
	binary.LittleEndian.PutUint32(meta[colAttrOff+24:], 8)  // name data_offset
	binary.LittleEndian.PutUint32(meta[colAttrOff+28:], 10) // name data_length
	meta[colAttrOff+34] = 2                                 // name ctype STR

	// FMT_LABEL x2 (subOff=1100, 1150): empty format/label for both columns (pool idx 0,
	// offset 0, length 0 — the zero value already means exactly that).
	copy(meta[1100:], sigFmtLabel)
	copy(meta[1150:], sigFmtLabel)

	// --- DATA page ---
	data := buf[headerLen+pageLen : headerLen+2*pageLen]
	putPageHeader(data, 256 /* DATA */, 3, 0)

	writeRow := func(rowIdx int, id float64, name string) {
		rowOff := 24 + rowIdx*18
		binary.LittleEndian.PutUint64(data[rowOff:], math.Float64bits(id))
		copy(data[rowOff+8:], name)
		for i := len(name); i < 10; i++ {
			data[rowOff+8+i] = ' '
		}
	}
	writeRow(0, 1.0, "alice")
	writeRow(1, 2.0, "bob")
	writeRow(2, 3.0, "carol")

	return buf
}

func TestOpenReadsUncompressedFile(t *testing.T) {
	buf := buildUncompressedFile(t)

	dec, err := sas7bdat.Open(bytes.NewReader(buf), reader.WithTrimStrings(true))
	require.NoError(t, err)

	schema := dec.Schema()
	require.Equal(t, 3, schema.RowCount)
	require.Equal(t, format.CompressionNone, schema.Compression)
	require.Len(t, schema.Columns, 2)
	require.Equal(t, "id", schema.Columns[0].Name)
	require.Equal(t, format.Numeric, schema.Columns[0].CType)
	require.Equal(t, "name", schema.Columns[1].Name)
	require.Equal(t, format.Text, schema.Columns[1].CType)
	require.Equal(t, "TESTDS", schema.DatasetName)

	want := []struct {
		id   float64
		name string
	}{
		{1.0, "alice"},
		{2.0, "bob"},
		{3.0, "carol"},
	}

	for i, w := range want {
		r, err := dec.Next()
		require.NoErrorf(t, err, "row %d", i)
		require.Len(t, r, 2)
		require.Equal(t, row.KindNumeric, r[0].Kind())
		require.Equal(t, w.id, r[0].Numeric())
		require.Equal(t, row.KindText, r[1].Kind())
		require.Equal(t, w.name, r[1].Text())
	}

	_, err = dec.Next()
	require.ErrorIs(t, err, errs.ErrNoMoreRows)

	// The Decoder stays exhausted rather than re-reading the stream.
	_, err = dec.Next()
	require.ErrorIs(t, err, errs.ErrNoMoreRows)
}

func TestOpenBadMagicFails(t *testing.T) {
	buf := buildUncompressedFile(t)
	buf[12] = 0xFF

	_, err := sas7bdat.Open(bytes.NewReader(buf))
	require.ErrorIs(t, err, errs.ErrBadMagic)
}
