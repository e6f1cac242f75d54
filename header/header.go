// Package header parses the fixed-layout SAS7BDAT file header: the 32-byte magic, the
// architecture/endianness/platform flags, the encoding id, dataset metadata, and the page
// geometry (header length, page length, page count, subheader pointer width) every later
// package needs to walk the rest of the file. Grounded in original_source's get_properties.
package header

import (
	"fmt"
	"io"
	"time"

	"github.com/OrganicProgramming/SAS-reader/endian"
	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
)

var magic = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xc2, 0xea, 0x81, 0x60, 0xb3, 0x14, 0x11, 0xcf, 0xbd, 0x92, 0x08, 0x00,
	0x09, 0xc7, 0x31, 0x8c, 0x18, 0x1f, 0x10, 0x11,
}

const (
	align1Offset  = 32
	align2Offset  = 35
	align2Value   = 4
	endianOffset  = 37
	platformOff   = 39
	encodingOff   = 70
	datasetOffset = 92
	datasetLength = 64
	fileTypeOff   = 156
	fileTypeLen   = 8
	dateCreateOff = 164
	dateModOff    = 172
	hdrSizeOff    = 196
	pageSizeOff   = 200
	pageCountOff  = 204
	sasReleaseOff = 216
	sasReleaseLen = 8
	serverTypeOff = 224
	serverTypeLen = 16
	osVersionOff  = 240
	osVersionLen  = 16
	osMakerOff    = 256
	osMakerLen    = 16
	osNameOff     = 272
	osNameLen     = 16

	pageBitOffsetX86      = 16
	pageBitOffsetX64      = 32
	subhdrPtrWidthX86     = 12
	subhdrPtrWidthX64     = 24
	defaultHeaderPrefix   = 288
	sixtyFourBitHdrLength = 8192
)

// Geometry is the set of file-architecture-dependent constants every downstream reader needs:
// integer width, endianness, page-pointer layout, and the page/header sizes read from the file.
type Geometry struct {
	U64                   bool
	IntWidth              int
	Engine                endian.EndianEngine
	PageBitOffset         int
	SubheaderPointerWidth int
	Align1                int
	Align2                int
	HeaderLength          int
	PageLength            int
	PageCount             int
}

// Info is everything header parsing extracts: the geometry plus the dataset-level facts that
// live in the fixed-offset portion of the header (as opposed to the ROW_SIZE/COL_TEXT
// subheaders the metadata walker later reads from the pages after the header).
type Info struct {
	Geometry    Geometry
	EncodingID  byte
	DatasetName string
	FileType    string
	Created     time.Time
	Modified    time.Time
	SasRelease  string
	ServerType  string
	OSName      string
	Platform    string

	// Raw holds the full header (Geometry.HeaderLength bytes), including the region beyond the
	// fixed 288-byte prefix this package parses. The metadata walker does not read subheaders
	// from Raw; it starts with the first page that follows the header in the stream.
	Raw []byte
}

// Parse reads and validates a SAS7BDAT header from the start of rs, leaving the stream
// positioned immediately after the header (ready for sequential page reads).
func Parse(rs io.ReadSeeker) (*Info, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to header: %w", err)
	}

	prefix := make([]byte, defaultHeaderPrefix)
	if _, err := io.ReadFull(rs, prefix); err != nil {
		return nil, fmt.Errorf("%w: reading header prefix: %w", errs.ErrTruncated, err)
	}

	for i, b := range magic {
		if prefix[i] != b {
			return nil, errs.ErrBadMagic
		}
	}

	geo := Geometry{
		IntWidth:              4,
		PageBitOffset:         pageBitOffsetX86,
		SubheaderPointerWidth: subhdrPtrWidthX86,
	}

	if prefix[align1Offset] == 51 {
		geo.U64 = true
		geo.IntWidth = 8
		geo.PageBitOffset = pageBitOffsetX64
		geo.SubheaderPointerWidth = subhdrPtrWidthX64
		geo.Align2 = align2Value
	}
	if prefix[align2Offset] == 51 {
		geo.Align1 = align2Value
	}

	geo.Engine = endian.ForByte(prefix[endianOffset])

	info := &Info{Geometry: geo, EncodingID: prefix[encodingOff], Platform: platformName(prefix[platformOff])}

	headerLen, err := readIntAt(prefix, hdrSizeOff+geo.Align1, 4, geo.Engine)
	if err != nil {
		return nil, err
	}
	geo.HeaderLength = int(headerLen)

	if geo.U64 && geo.HeaderLength != sixtyFourBitHdrLength {
		return nil, fmt.Errorf("%w: 64-bit file header length is %d, want %d", errs.ErrGeometryInvariant, geo.HeaderLength, sixtyFourBitHdrLength)
	}

	raw := make([]byte, geo.HeaderLength)
	copy(raw, prefix)
	if geo.HeaderLength > defaultHeaderPrefix {
		if _, err := io.ReadFull(rs, raw[defaultHeaderPrefix:]); err != nil {
			return nil, fmt.Errorf("%w: reading remainder of header: %w", errs.ErrTruncated, err)
		}
	}
	info.Raw = raw

	pageCount, err := readIntAt(raw, pageCountOff+geo.Align1, 4, geo.Engine)
	if err != nil {
		return nil, err
	}
	geo.PageCount = int(pageCount)

	pageLen, err := readIntAt(raw, pageSizeOff+geo.Align1, 4, geo.Engine)
	if err != nil {
		return nil, err
	}
	geo.PageLength = int(pageLen)

	info.Geometry = geo

	info.DatasetName = trimNulls(string(raw[datasetOffset : datasetOffset+datasetLength]))
	info.FileType = trimNulls(string(raw[fileTypeOff : fileTypeOff+fileTypeLen]))

	createdSecs, ok := endian.ReadFloat64(raw, dateCreateOff, geo.Engine)
	if !ok {
		return nil, fmt.Errorf("%w: reading creation timestamp", errs.ErrTruncated)
	}
	info.Created = format.SasEpoch.Add(time.Duration(createdSecs * float64(time.Second)))

	modifiedSecs, ok := endian.ReadFloat64(raw, dateModOff, geo.Engine)
	if !ok {
		return nil, fmt.Errorf("%w: reading modification timestamp", errs.ErrTruncated)
	}
	info.Modified = format.SasEpoch.Add(time.Duration(modifiedSecs * float64(time.Second)))

	totalAlign := geo.Align1 + geo.Align2
	info.SasRelease = trimNulls(string(raw[sasReleaseOff+totalAlign : sasReleaseOff+totalAlign+sasReleaseLen]))
	info.ServerType = trimNulls(string(raw[serverTypeOff+totalAlign : serverTypeOff+totalAlign+serverTypeLen]))

	if raw[osNameOff+totalAlign] != 0 {
		info.OSName = trimNulls(string(raw[osNameOff+totalAlign : osNameOff+totalAlign+osNameLen]))
	} else {
		info.OSName = trimNulls(string(raw[osMakerOff+totalAlign : osMakerOff+totalAlign+osMakerLen]))
	}

	return info, nil
}

func readIntAt(buf []byte, off, width int, e endian.EndianEngine) (uint64, error) {
	v, ok := endian.ReadUint(buf, off, width, e)
	if !ok {
		return 0, fmt.Errorf("%w: reading field at offset %d", errs.ErrTruncated, off)
	}

	return v, nil
}

// platformName maps the header's single-byte platform flag to the name original_source uses:
// '1' for unix, '2' for windows, anything else is reported as unknown rather than rejected.
func platformName(b byte) string {
	switch b {
	case '1':
		return "unix"
	case '2':
		return "windows"
	default:
		return "unknown"
	}
}

func trimNulls(s string) string {
	for len(s) > 0 && (s[len(s)-1] == 0x00 || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}

	return s
}
