// Package reader assembles the lower-level packages (header, subhdr, schema, compress, cell,
// textcodec) into the public Decoder: the state machine that walks a SAS7BDAT file's metadata
// pages once, then its data/mix pages row by row. Grounded in original_source's SasReader
// (get_properties → parse_metadata → read_line) and, for its functional-options configuration,
// arloliu/mebo's internal/options pattern.
package reader

import (
	"fmt"
	"io"

	"github.com/OrganicProgramming/SAS-reader/cell"
	"github.com/OrganicProgramming/SAS-reader/compress"
	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
	"github.com/OrganicProgramming/SAS-reader/header"
	"github.com/OrganicProgramming/SAS-reader/internal/options"
	"github.com/OrganicProgramming/SAS-reader/row"
	"github.com/OrganicProgramming/SAS-reader/schema"
	"github.com/OrganicProgramming/SAS-reader/subhdr"
	"github.com/OrganicProgramming/SAS-reader/textcodec"
)

// lifecycleState tracks the Decoder's position in the state machine described by spec.md 4.8:
// New → HeaderParsed → MetadataComplete → (Iterating ⇄ PageAdvancing) → Exhausted | Failed.
type lifecycleState uint8

const (
	stateHeaderParsed lifecycleState = iota
	stateIterating
	stateExhausted
	stateFailed
)

// Decoder walks a SAS7BDAT file: Open parses the header and every metadata page up front, and
// repeated calls to Next then emit rows in file order until errs.ErrNoMoreRows.
//
// A Decoder is not safe for concurrent use (spec.md section 5): it owns a mutable row cursor,
// a page buffer that is overwritten (or, for a straddling row, temporarily extended) on every
// page advance, and the backing stream. Once Failed, every subsequent call returns the same
// error without touching the stream again.
type Decoder struct {
	rs  io.ReadSeeker
	cfg *config
	geo header.Geometry
	info *header.Info

	text       *textcodec.Decoder
	schema     *schema.Schema
	cellDec    *cell.Decoder
	decompress compress.Decompressor

	rowLen          int
	mixPageRowCount int

	lifecycle lifecycleState
	err       error

	page        []byte
	pageHdr     pageHeader
	dataPtrs    []subheaderPointer
	rowArrayOff int

	rowOnPage int
	rowInFile int
}

// Open parses rs as a SAS7BDAT file: the fixed-layout header, then every metadata page up to
// (and including) the first page holding row data. The returned Decoder is ready for Next.
func Open(rs io.ReadSeeker, opts ...Option) (*Decoder, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	info, err := header.Parse(rs)
	if err != nil {
		return nil, err
	}

	text, err := textcodec.ForID(info.EncodingID)
	if err != nil {
		// spec.md 4.1/7: an unrecognized encoding id is recorded but latent — it only
		// becomes a hard failure once something actually tries to decode text with it.
		text = textcodec.Unresolved(info.EncodingID)
	}

	d := &Decoder{
		rs:        rs,
		cfg:       cfg,
		geo:       info.Geometry,
		info:      info,
		text:      text,
		lifecycle: stateHeaderParsed,
	}

	if err := d.readMetadata(); err != nil {
		return nil, d.fail(err)
	}

	d.cellDec = cell.New(d.geo.Engine, d.text, d.cfg.trimStrings)

	if d.schema.Compression != format.CompressionNone {
		dc, err := compress.ForCompression(d.schema.Compression)
		if err != nil {
			return nil, d.fail(err)
		}
		d.decompress = dc
	}

	if d.lifecycle != stateExhausted {
		d.lifecycle = stateIterating
	}

	return d, nil
}

// Schema returns the dataset's assembled column and file-level metadata. Valid for the
// lifetime of the Decoder; the returned value is never mutated after Open returns.
func (d *Decoder) Schema() schema.Schema {
	return *d.schema
}

// Next decodes and returns the next row in file order, or errs.ErrNoMoreRows once the last
// row of the last page has been emitted. Any other error transitions the Decoder to its
// failed terminal state; every subsequent call then returns that same error immediately.
func (d *Decoder) Next() (row.Row, error) {
	if d.lifecycle == stateFailed {
		return nil, d.err
	}
	if d.lifecycle == stateExhausted {
		return nil, errs.ErrNoMoreRows
	}

	for {
		raw, needAdvance, err := d.nextRowBytes()
		if err != nil {
			return nil, d.fail(err)
		}

		if needAdvance {
			if err := d.advancePage(); err != nil {
				return nil, d.fail(err)
			}
			if d.lifecycle == stateExhausted {
				return nil, errs.ErrNoMoreRows
			}

			continue
		}

		r, err := d.decodeRow(raw)
		if err != nil {
			return nil, d.fail(err)
		}

		d.rowOnPage++
		d.rowInFile++

		return r, nil
	}
}

func (d *Decoder) fail(err error) error {
	d.lifecycle = stateFailed
	d.err = err

	return err
}

// nextRowBytes returns the fully decompressed byte span for the row at the current cursor, or
// needAdvance=true when the current page's rows (or subheader-pointer list) are exhausted and
// the caller should load the next page before retrying (spec.md 4.4's three page-type cases).
func (d *Decoder) nextRowBytes() (raw []byte, needAdvance bool, err error) {
	switch {
	case d.pageHdr.pageType.IsMix():
		limit := min(d.schema.RowCount, d.mixPageRowCount)
		if d.rowOnPage >= limit {
			return nil, true, nil
		}

		off := d.rowArrayOff + d.rowOnPage*d.rowLen
		raw, err = d.sliceRange(off, d.rowLen)

		return raw, false, err

	case d.pageHdr.pageType == format.PageData:
		if d.rowOnPage >= d.pageHdr.blockCount {
			return nil, true, nil
		}

		off := d.rowArrayOff + d.rowOnPage*d.rowLen
		raw, err = d.sliceRange(off, d.rowLen)

		return raw, false, err

	case d.pageHdr.pageType == format.PageMeta || d.pageHdr.pageType == format.PageAMD:
		if d.rowOnPage >= len(d.dataPtrs) {
			return nil, true, nil
		}

		ptr := d.dataPtrs[d.rowOnPage]
		span, err := d.sliceRange(ptr.offset, ptr.length)
		if err != nil {
			return nil, false, err
		}

		if ptr.length < d.rowLen && d.schema.Compression != format.CompressionNone {
			raw, err = d.decompress(d.rowLen, span)
			return raw, false, err
		}

		return span, false, nil

	default:
		return nil, false, fmt.Errorf("%w: page type %s", errs.ErrUnknownPageType, d.pageHdr.pageType)
	}
}

// sliceRange returns page bytes [off:off+length], loading and appending further pages first
// if the span runs past the current buffer (spec.md 4.4's cross-page overflow rule: a
// subheader span, or the row it decompresses to, may straddle a page boundary).
func (d *Decoder) sliceRange(off, length int) ([]byte, error) {
	for off+length > len(d.page) {
		next := make([]byte, d.geo.PageLength)
		eof, err := readPage(d.rs, next)
		if err != nil {
			return nil, err
		}
		if eof {
			return nil, fmt.Errorf("%w: row spans past end of file", errs.ErrTruncated)
		}

		d.page = append(d.page, next...)
	}

	if off < 0 || length < 0 {
		return nil, fmt.Errorf("%w: negative row span [%d:+%d]", errs.ErrGeometryInvariant, off, length)
	}

	return d.page[off : off+length], nil
}

// decodeRow applies the cell decoder to each column in definition order, stopping early at a
// column whose declared data_length is zero (spec.md 4.5's end-of-record sentinel).
func (d *Decoder) decodeRow(raw []byte) (row.Row, error) {
	out := make(row.Row, 0, len(d.schema.Columns))

	for _, col := range d.schema.Columns {
		if col.DataLength == 0 {
			break
		}
		if col.DataOffset+col.DataLength > len(raw) {
			return nil, fmt.Errorf("%w: column %q span exceeds row length %d", errs.ErrGeometryInvariant, col.Name, len(raw))
		}

		c, err := d.cellDec.Decode(col, raw[col.DataOffset:col.DataOffset+col.DataLength])
		if err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	return out, nil
}

// readMetadata walks pages from immediately after the header, dispatching subheaders on every
// META/MIX/AMD page, until a page carrying row data is reached (spec.md 4.3's termination
// rule) or the stream ends with none found.
func (d *Decoder) readMetadata() error {
	mb := newMetadataBuilder(d.geo.IntWidth, d.geo.U64, d.geo.Engine, d.text)

	for {
		page := make([]byte, d.geo.PageLength)
		eof, err := readPage(d.rs, page)
		if err != nil {
			return err
		}
		if eof {
			return d.finishMetadata(mb, nil, pageHeader{}, nil, true)
		}

		hdr, err := readPageHeader(page, d.geo)
		if err != nil {
			return err
		}

		if !hdr.pageType.IsRecognized() {
			// Unknown page types are silently skipped while walking metadata (spec.md 4.2).
			continue
		}

		var dataPtrs []subheaderPointer
		if hdr.pageType.IsMetaMixAMD() {
			ptrs, err := readSubheaderPointers(page, d.geo, hdr)
			if err != nil {
				return err
			}

			dataPtrs, err = d.dispatchSubheaders(mb, page, ptrs)
			if err != nil {
				return err
			}
		}

		if hdr.pageType.IsMixOrData() || len(dataPtrs) > 0 {
			return d.finishMetadata(mb, page, hdr, dataPtrs, false)
		}
	}
}

// dispatchSubheaders classifies and processes every subheader pointer on a metadata page,
// mutating mb for every known kind and collecting DATA_SUBHDR pointers for the row
// materializer (spec.md 4.3).
func (d *Decoder) dispatchSubheaders(mb *metadataBuilder, page []byte, ptrs []subheaderPointer) ([]subheaderPointer, error) {
	var dataPtrs []subheaderPointer

	for _, ptr := range ptrs {
		if ptr.length == 0 || ptr.compression == truncatedSubheaderCompression {
			continue
		}

		sig, err := d.readSignature(page, ptr.offset)
		if err != nil {
			return nil, err
		}

		kind, err := subhdr.Classify(sig, ptr.compression, ptr.subType, mb.compression != format.CompressionNone)
		if err != nil {
			return nil, err
		}

		switch kind {
		case subhdr.RowSize:
			err = mb.processRowSize(page, ptr.offset)
		case subhdr.ColSize:
			err = mb.processColSize(page, ptr.offset)
		case subhdr.ColText:
			err = mb.processColText(page, ptr.offset, ptr.length)
		case subhdr.ColName:
			err = mb.processColName(page, ptr.offset, ptr.length)
		case subhdr.ColAttr:
			err = mb.processColAttr(page, ptr.offset, ptr.length)
		case subhdr.FmtLabel:
			err = mb.processFormatLabel(page, ptr.offset)
		case subhdr.ColList, subhdr.SubHdrCounts:
			// Accepted but no-ops (spec.md 4.3).
		case subhdr.Data:
			dataPtrs = append(dataPtrs, ptr)
		}
		if err != nil {
			return nil, err
		}
	}

	return dataPtrs, nil
}

// collectDataPointers is dispatchSubheaders' counterpart for pages encountered after the
// schema is already finished (spec.md 4.4: "META pages may be processed for more subheaders
// on the way"). Only DATA_SUBHDR pointers are meaningful this late; every other kind would
// only legitimately reappear on a corrupt file, so it is silently ignored rather than
// mutating an already-immutable schema.
func (d *Decoder) collectDataPointers(page []byte, ptrs []subheaderPointer) ([]subheaderPointer, error) {
	var dataPtrs []subheaderPointer

	for _, ptr := range ptrs {
		if ptr.length == 0 || ptr.compression == truncatedSubheaderCompression {
			continue
		}

		sig, err := d.readSignature(page, ptr.offset)
		if err != nil {
			return nil, err
		}

		kind, err := subhdr.Classify(sig, ptr.compression, ptr.subType, d.schema.Compression != format.CompressionNone)
		if err != nil {
			return nil, err
		}

		if kind == subhdr.Data {
			dataPtrs = append(dataPtrs, ptr)
		}
	}

	return dataPtrs, nil
}

func (d *Decoder) readSignature(page []byte, off int) ([]byte, error) {
	il := d.geo.IntWidth
	if off < 0 || off+il > len(page) {
		return nil, fmt.Errorf("%w: subheader signature at offset %d", errs.ErrTruncated, off)
	}

	return page[off : off+il], nil
}

// finishMetadata assembles the accumulated schema.Schema and positions the row materializer
// on the page the walker stopped at (or, if eof is true, marks the Decoder exhausted with a
// zero-row schema — a validly-formed file with no data pages is zero rows, not an error).
func (d *Decoder) finishMetadata(mb *metadataBuilder, page []byte, hdr pageHeader, dataPtrs []subheaderPointer, eof bool) error {
	s, err := mb.finish(schema.Info{
		EncodingID:  d.info.EncodingID,
		Created:     d.info.Created,
		Modified:    d.info.Modified,
		DatasetName: d.info.DatasetName,
		FileType:    d.info.FileType,
		SASRelease:  d.info.SasRelease,
		ServerType:  d.info.ServerType,
		OSName:      d.info.OSName,
		Platform:    d.info.Platform,
	})
	if err != nil {
		return err
	}

	d.schema = s
	d.rowLen = mb.rowLen
	d.mixPageRowCount = mb.mixPageRowCount

	if eof {
		d.lifecycle = stateExhausted
		return nil
	}

	d.page = page
	d.pageHdr = hdr
	d.dataPtrs = dataPtrs
	d.rowOnPage = 0

	switch {
	case hdr.pageType.IsMix():
		d.rowArrayOff = mixRowArrayOffset(d.geo, hdr, d.cfg.noAlignCorrection)
	case hdr.pageType == format.PageData:
		d.rowArrayOff = dataRowArrayOffset(d.geo)
	}

	return nil
}

// advancePage loads pages until one carries rows to emit: a MIX/DATA page, or a META/AMD page
// whose subheader pointers included at least one DATA_SUBHDR (spec.md 4.4's META-page
// bullet: "META pages may be processed for more subheaders on the way"). EOF here is the
// normal end of iteration, not an error (spec.md 4.2).
func (d *Decoder) advancePage() error {
	for {
		page := make([]byte, d.geo.PageLength)
		eof, err := readPage(d.rs, page)
		if err != nil {
			return err
		}
		if eof {
			d.lifecycle = stateExhausted
			return nil
		}

		hdr, err := readPageHeader(page, d.geo)
		if err != nil {
			return err
		}
		if !hdr.pageType.IsRecognized() {
			return fmt.Errorf("%w: page type %d", errs.ErrUnknownPageType, int16(hdr.pageType))
		}

		var dataPtrs []subheaderPointer
		if hdr.pageType.IsMetaMixAMD() {
			ptrs, err := readSubheaderPointers(page, d.geo, hdr)
			if err != nil {
				return err
			}

			dataPtrs, err = d.collectDataPointers(page, ptrs)
			if err != nil {
				return err
			}
		}

		d.page = page
		d.pageHdr = hdr
		d.dataPtrs = dataPtrs
		d.rowOnPage = 0

		switch {
		case hdr.pageType.IsMix():
			d.rowArrayOff = mixRowArrayOffset(d.geo, hdr, d.cfg.noAlignCorrection)
		case hdr.pageType == format.PageData:
			d.rowArrayOff = dataRowArrayOffset(d.geo)
		}

		if hdr.pageType.IsMixOrData() || len(dataPtrs) > 0 {
			return nil
		}
		// META/AMD page with nothing to emit: keep walking.
	}
}
