package reader

import (
	"bytes"
	"fmt"

	"github.com/OrganicProgramming/SAS-reader/endian"
	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
	"github.com/OrganicProgramming/SAS-reader/schema"
	"github.com/OrganicProgramming/SAS-reader/textcodec"
)

// Byte offsets within a ROW_SIZE subheader's payload, expressed as multiples of int_width
// (spec.md 4.3; original_source process_row_size_sub_hdr). lcs/lcp sit at fixed byte offsets
// that differ between 32- and 64-bit files rather than scaling with int_width.
const (
	rowLengthMultiplier    = 5
	rowCountMultiplier     = 6
	colCountP1Multiplier   = 9
	colCountP2Multiplier   = 10
	mixPageRowCntMultiplier = 15

	lcsOffset32 = 354
	lcpOffset32 = 378
	lcsOffset64 = 682
	lcpOffset64 = 706
)

// COL_TEXT layout (spec.md 4.3): a 2-byte text-block size immediately after the signature,
// followed by the pool bytes themselves.
const textBlockSizeLength = 2

// creator_proc is sniffed at one of three offsets past the COL_TEXT subheader's own payload
// start, chosen by whether a compression literal is present, mirroring original_source's
// process_col_txt_sub_hdr branching.
const (
	creatorProcProbeOffset       = 16
	creatorProcNoCompressOffset  = 32
	creatorProcRLECompressOffset = 40
	compressionLiteralProbeLen   = 8
)

// COL_NAME pointer layout (spec.md 4.3): each 8-byte pointer is
// (text-pool index 2B, offset 2B, length 2B, padding 2B).
const (
	columnNamePointerLength      = 8
	columnNameTextSubhdrOffset   = 0
	columnNameTextSubhdrLength   = 2
	columnNameOffsetOffset       = 2
	columnNameOffsetLength       = 2
	columnNameLengthOffset       = 4
	columnNameLengthLength       = 2
)

// COL_ATTR record layout (spec.md 4.3 and original_source's pandas-derived constants): each
// record is int_width+8 bytes: data_offset (int_width), data_length (4B), two bytes unused,
// ctype (1B), one byte padding.
const (
	columnDataOffsetOffset = 8
	columnDataLengthOffset = 8
	columnDataLengthLength = 4
	columnTypeOffset       = 14
	columnTypeLength       = 1
)

// FMT_LABEL layout (spec.md 4.3): one record per call, offsets past 3*int_width.
const (
	columnFormatTextSubhdrOffset = 22
	columnFormatTextSubhdrLength = 2
	columnFormatOffsetOffset     = 24
	columnFormatOffsetLength     = 2
	columnFormatLengthOffset     = 26
	columnFormatLengthLength     = 2
	columnLabelTextSubhdrOffset  = 28
	columnLabelTextSubhdrLength  = 2
	columnLabelOffsetOffset      = 30
	columnLabelOffsetLength      = 2
	columnLabelLengthOffset      = 32
	columnLabelLengthLength      = 2
)

// metadataBuilder accumulates the facts scattered across a file's metadata subheaders
// (spread across one or more META/MIX/AMD pages) into a finished schema.Schema. One
// metadataBuilder is used per file; its process* methods are called once per subheader
// pointer as the page walker classifies it (see decoder.go's dispatchSubheaders).
type metadataBuilder struct {
	intWidth int
	u64      bool
	engine   endian.EndianEngine
	text     *textcodec.Decoder

	rowLen          int
	rowCount        int
	colCountP1      int
	colCountP2      int
	colCount        int
	mixPageRowCount int
	lcs             int
	lcp             int
	compression     format.Compression
	creatorProc     string

	colTextPools [][]byte
	colNames     []string
	colLabels    []string
	colFormats   []string
	colTypes     []format.CType
	colDataOff   []int
	colDataLen   []int
}

func newMetadataBuilder(intWidth int, u64 bool, engine endian.EndianEngine, text *textcodec.Decoder) *metadataBuilder {
	return &metadataBuilder{intWidth: intWidth, u64: u64, engine: engine, text: text}
}

func (m *metadataBuilder) readUint(page []byte, off, width int) (int, error) {
	v, ok := endian.ReadUint(page, off, width, m.engine)
	if !ok {
		return 0, fmt.Errorf("%w: reading metadata field at offset %d", errs.ErrTruncated, off)
	}

	return int(v), nil
}

// processRowSize reads the per-row length, row count, the two (sometimes mismatched) column
// counts, the MIX-page row-count cap, and the compression-literal lengths lcs/lcp.
func (m *metadataBuilder) processRowSize(page []byte, subOff int) error {
	il := m.intWidth
	off := subOff + il

	var err error
	if m.rowLen, err = m.readUint(page, off+rowLengthMultiplier*il, il); err != nil {
		return err
	}
	if m.rowCount, err = m.readUint(page, off+rowCountMultiplier*il, il); err != nil {
		return err
	}
	if m.colCountP1, err = m.readUint(page, off+colCountP1Multiplier*il, il); err != nil {
		return err
	}
	if m.colCountP2, err = m.readUint(page, off+colCountP2Multiplier*il, il); err != nil {
		return err
	}
	if m.mixPageRowCount, err = m.readUint(page, off+mixPageRowCntMultiplier*il, il); err != nil {
		return err
	}

	lcsOff, lcpOff := lcsOffset32, lcpOffset32
	if m.u64 {
		lcsOff, lcpOff = lcsOffset64, lcpOffset64
	}
	if m.lcs, err = m.readUint(page, subOff+lcsOff, 2); err != nil {
		return err
	}
	if m.lcp, err = m.readUint(page, subOff+lcpOff, 2); err != nil {
		return err
	}

	return nil
}

// processColSize reads the file's total column count and cross-checks it against the two
// counts ROW_SIZE already gave (spec.md 4.3 notes these can legitimately differ in p1/p2 but
// must always sum to the true count).
func (m *metadataBuilder) processColSize(page []byte, subOff int) error {
	off := subOff + m.intWidth

	colCount, err := m.readUint(page, off, m.intWidth)
	if err != nil {
		return err
	}

	if m.colCountP1+m.colCountP2 != colCount {
		return fmt.Errorf("%w: ROW_SIZE column counts (%d+%d) disagree with COL_SIZE (%d)", errs.ErrGeometryInvariant, m.colCountP1, m.colCountP2, colCount)
	}
	m.colCount = colCount

	return nil
}

// processColText copies one column-text pool (spec.md 4.3). On the first pool it also sniffs
// the compression literal and extracts creator_proc, mirroring original_source's
// process_col_txt_sub_hdr.
func (m *metadataBuilder) processColText(page []byte, subOff, length int) error {
	off := subOff + m.intWidth

	txtBlockSz, err := m.readUint(page, off, textBlockSizeLength)
	if err != nil {
		return err
	}

	start := off + textBlockSizeLength
	if start+txtBlockSz > len(page) {
		return fmt.Errorf("%w: COL_TEXT pool overruns page", errs.ErrTruncated)
	}

	pool := make([]byte, txtBlockSz)
	copy(pool, page[start:start+txtBlockSz])
	m.colTextPools = append(m.colTextPools, pool)

	if len(m.colTextPools) == 1 {
		m.sniffCompressionAndCreator(page, subOff, pool)
	}

	return nil
}

func (m *metadataBuilder) sniffCompressionAndCreator(page []byte, subOff int, pool []byte) {
	switch {
	case bytes.Contains(pool, []byte("SASYZCRL")):
		m.compression = format.CompressionRLE
	case bytes.Contains(pool, []byte("SASYZCR2")):
		m.compression = format.CompressionRDC
	default:
		m.compression = format.CompressionNone
	}

	align := 0
	if m.u64 {
		align = 4
	}

	probeOff := subOff + creatorProcProbeOffset + align
	probe := ""
	if probeOff+compressionLiteralProbeLen <= len(page) {
		probe = trimNullsAndSpaces(string(page[probeOff : probeOff+compressionLiteralProbeLen]))
	}

	var procOff, procLen int
	switch {
	case probe == "":
		m.lcs = 0
		procOff = subOff + creatorProcNoCompressOffset + align
		procLen = m.lcp
	case probe == "SASYZCRL":
		procOff = subOff + creatorProcRLECompressOffset + align
		procLen = m.lcp
	case m.lcs > 0:
		m.lcp = 0
		procOff = subOff + creatorProcProbeOffset + align
		procLen = m.lcs
	default:
		return
	}

	if procLen <= 0 || procOff < 0 || procOff+procLen > len(page) {
		return
	}

	name, err := m.text.Decode(page[procOff : procOff+procLen])
	if err == nil {
		m.creatorProc = trimNullsAndSpaces(name)
	}
}

// processColName reads the name pointers following a COL_NAME subheader's header, resolving
// each one against the already-collected text pools (spec.md 4.3).
func (m *metadataBuilder) processColName(page []byte, subOff, length int) error {
	il := m.intWidth
	off := subOff + il

	ptrCount := (length - 2*il - 12) / columnNamePointerLength
	for i := 0; i < ptrCount; i++ {
		base := off + columnNamePointerLength*(i+1)

		idx, err := m.readUint(page, base+columnNameTextSubhdrOffset, columnNameTextSubhdrLength)
		if err != nil {
			return err
		}
		colOff, err := m.readUint(page, base+columnNameOffsetOffset, columnNameOffsetLength)
		if err != nil {
			return err
		}
		colLen, err := m.readUint(page, base+columnNameLengthOffset, columnNameLengthLength)
		if err != nil {
			return err
		}

		name, err := m.resolvePoolString(idx, colOff, colLen)
		if err != nil {
			return err
		}
		m.colNames = append(m.colNames, name)
	}

	return nil
}

// processColAttr reads one block of column attribute records (data offset/length/type),
// spec.md 4.3.
func (m *metadataBuilder) processColAttr(page []byte, subOff, length int) error {
	il := m.intWidth

	vecCount := (length - 2*il - 12) / (il + 8)
	for i := 0; i < vecCount; i++ {
		stride := i * (il + 8)

		dataOff, err := m.readUint(page, subOff+il+columnDataOffsetOffset+stride, il)
		if err != nil {
			return err
		}
		dataLen, err := m.readUint(page, subOff+2*il+columnDataLengthOffset+stride, columnDataLengthLength)
		if err != nil {
			return err
		}
		rawType, err := m.readUint(page, subOff+2*il+columnTypeOffset+stride, columnTypeLength)
		if err != nil {
			return err
		}

		ctype := format.Text
		if rawType == 1 {
			ctype = format.Numeric
		}

		m.colDataOff = append(m.colDataOff, dataOff)
		m.colDataLen = append(m.colDataLen, dataLen)
		m.colTypes = append(m.colTypes, ctype)
	}

	return nil
}

// processFormatLabel reads one format+label pair, appending the next column's display
// metadata in definition order (spec.md 4.3).
func (m *metadataBuilder) processFormatLabel(page []byte, subOff int) error {
	base := subOff + 3*m.intWidth

	formatIdx, err := m.readUint(page, base+columnFormatTextSubhdrOffset, columnFormatTextSubhdrLength)
	if err != nil {
		return err
	}
	formatOff, err := m.readUint(page, base+columnFormatOffsetOffset, columnFormatOffsetLength)
	if err != nil {
		return err
	}
	formatLen, err := m.readUint(page, base+columnFormatLengthOffset, columnFormatLengthLength)
	if err != nil {
		return err
	}
	labelIdx, err := m.readUint(page, base+columnLabelTextSubhdrOffset, columnLabelTextSubhdrLength)
	if err != nil {
		return err
	}
	labelOff, err := m.readUint(page, base+columnLabelOffsetOffset, columnLabelOffsetLength)
	if err != nil {
		return err
	}
	labelLen, err := m.readUint(page, base+columnLabelLengthOffset, columnLabelLengthLength)
	if err != nil {
		return err
	}

	formatStr, err := m.resolvePoolString(m.clampPoolIndex(formatIdx), formatOff, formatLen)
	if err != nil {
		return err
	}
	labelStr, err := m.resolvePoolString(m.clampPoolIndex(labelIdx), labelOff, labelLen)
	if err != nil {
		return err
	}

	m.colFormats = append(m.colFormats, formatStr)
	m.colLabels = append(m.colLabels, labelStr)

	return nil
}

// clampPoolIndex keeps a text-pool index within range: spec.md 4.3 specifies indices are
// clamped to the pool length minus one rather than rejected.
func (m *metadataBuilder) clampPoolIndex(idx int) int {
	if idx >= len(m.colTextPools) {
		return len(m.colTextPools) - 1
	}

	return idx
}

func (m *metadataBuilder) resolvePoolString(poolIdx, off, length int) (string, error) {
	if poolIdx < 0 || poolIdx >= len(m.colTextPools) {
		return "", fmt.Errorf("%w: text-pool index %d out of range", errs.ErrGeometryInvariant, poolIdx)
	}

	pool := m.colTextPools[poolIdx]
	if off < 0 || length < 0 || off+length > len(pool) {
		return "", fmt.Errorf("%w: text-pool span [%d:%d] out of range", errs.ErrGeometryInvariant, off, off+length)
	}

	return m.text.Decode(pool[off : off+length])
}

// finish assembles the accumulated column facts into a schema.Schema. Called once the page
// walker has processed every metadata page. info carries the dataset-level facts the header
// parsed directly (name, timestamps, release/server/platform strings); only Compression and
// CreatorProc are filled in here from what metadata parsing itself discovered.
func (m *metadataBuilder) finish(info schema.Info) (*schema.Schema, error) {
	if len(m.colNames) != m.colCount || len(m.colTypes) != m.colCount || len(m.colFormats) != m.colCount {
		return nil, fmt.Errorf("%w: collected %d names, %d attrs, %d formats for %d columns", errs.ErrGeometryInvariant, len(m.colNames), len(m.colTypes), len(m.colFormats), m.colCount)
	}

	columns := make([]schema.Column, m.colCount)
	for i := 0; i < m.colCount; i++ {
		columns[i] = schema.Column{
			ID:         i,
			Name:       m.colNames[i],
			Label:      m.colLabels[i],
			Format:     m.colFormats[i],
			CType:      m.colTypes[i],
			DataOffset: m.colDataOff[i],
			DataLength: m.colDataLen[i],
		}
	}

	info.Compression = m.compression
	info.CreatorProc = m.creatorProc

	return schema.New(columns, m.rowCount, info), nil
}

func trimNullsAndSpaces(s string) string {
	for len(s) > 0 && (s[len(s)-1] == 0x00 || s[len(s)-1] == ' ') {
		s = s[:len(s)-1]
	}

	return s
}
