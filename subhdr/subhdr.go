// Package subhdr classifies a metadata subheader by its leading signature bytes.
//
// SAS7BDAT subheaders do not carry an explicit type tag; the reader must recognize one of a
// fixed set of 4- or 8-byte bit patterns (the width depends on the file's 32/64-bit
// architecture). Grounded in original_source's get_hdr_sig_map/get_sub_hdr_idx: signatures
// come in 32-bit and 64-bit forms and, for ROW_SIZE/COL_SIZE, in both endiannesses.
package subhdr

import (
	"encoding/hex"
	"fmt"

	"github.com/OrganicProgramming/SAS-reader/errs"
)

// Kind identifies what a subheader's payload describes.
type Kind int

const (
	Unknown Kind = iota
	RowSize
	ColSize
	SubHdrCounts
	ColText
	ColName
	ColAttr
	FmtLabel
	ColList
	Data
)

func (k Kind) String() string {
	switch k {
	case RowSize:
		return "ROW_SIZE"
	case ColSize:
		return "COL_SIZE"
	case SubHdrCounts:
		return "SUB_HDR_COUNTS"
	case ColText:
		return "COL_TEXT"
	case ColName:
		return "COL_NAME"
	case ColAttr:
		return "COL_ATTR"
	case FmtLabel:
		return "FMT_LABEL"
	case ColList:
		return "COL_LIST"
	case Data:
		return "DATA_SUBHDR"
	default:
		return "UNKNOWN"
	}
}

// signatures maps every known 4-byte and 8-byte signature (hex-encoded, as seen on the wire)
// to its Kind. Entries come in pairs/quads because the same logical subheader signature is
// written with its bytes reversed on some files, and repeated to fill 8 bytes on 64-bit files.
var signatures = map[string]Kind{
	"00000000f7f7f7f7": RowSize,
	"f7f7f7f7":         RowSize,
	"f7f7f7f700000000": RowSize,
	"f7f7f7f7fffffbfe": RowSize,

	"f6f6f6f6":         ColSize,
	"00000000f6f6f6f6": ColSize,
	"f6f6f6f600000000": ColSize,
	"f6f6f6f6fffffbfe": ColSize,

	"00fcffff":         SubHdrCounts,
	"fffffc00":         SubHdrCounts,
	"00fcffffffffffff": SubHdrCounts,
	"fffffffffffffc00": SubHdrCounts,

	"fdffffff":         ColText,
	"fffffffd":         ColText,
	"fdffffffffffffff": ColText,
	"fffffffffffffffd": ColText,

	"ffffffff":         ColName,
	"ffffffffffffffff": ColName,

	"fcffffff":         ColAttr,
	"fffffffc":         ColAttr,
	"fcffffffffffffff": ColAttr,
	"fffffffffffffffc": ColAttr,

	"fefbffff":         FmtLabel,
	"fffffbfe":         FmtLabel,
	"fefbffffffffffff": FmtLabel,
	"fffffffffffffbfe": FmtLabel,

	"feffffff":         ColList,
	"fffffffe":         ColList,
	"feffffffffffffff": ColList,
	"fffffffffffffffe": ColList,
}

// CompressedSubheaderID and CompressedSubheaderType are the sentinel pointer compression/type
// values original_source checks when a signature isn't found in the table: an unrecognized
// signature on a compressed file whose pointer looks like a data subheader is classified as
// Data rather than rejected, since compressed row data has no fixed signature.
const (
	CompressedSubheaderID   = 4
	CompressedSubheaderType = 1
)

// Classify maps a subheader's signature bytes to a Kind. When sig matches no known signature,
// the subheader is classified as Data only if the file is compressed and the pointer's
// compression/type fields match the compressed-data convention; otherwise classification fails.
func Classify(sig []byte, compression, ptype int, fileIsCompressed bool) (Kind, error) {
	key := hex.EncodeToString(sig)
	if k, ok := signatures[key]; ok {
		return k, nil
	}

	looksCompressed := compression == CompressedSubheaderID || compression == 0
	if fileIsCompressed && looksCompressed && ptype == CompressedSubheaderType {
		return Data, nil
	}

	return Unknown, fmt.Errorf("%w: subheader signature %s", errs.ErrGeometryInvariant, key)
}
