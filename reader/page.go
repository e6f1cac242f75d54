package reader

import (
	"fmt"
	"io"

	"github.com/OrganicProgramming/SAS-reader/endian"
	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
	"github.com/OrganicProgramming/SAS-reader/header"
)

// Page header field offsets, relative to geo.PageBitOffset (spec.md 4.2; original_source's
// read_page_hdr). Page type is a signed 2-byte field; block/subheader counts are unsigned.
const (
	pageTypeOffset        = 0
	pageTypeLength        = 2
	blockCountOffset      = 2
	blockCountLength      = 2
	subheaderCountOffset  = 4
	subheaderCountLength  = 2
	subheaderPointersBase = 8
)

// truncatedSubheaderCompression marks a subheader pointer whose payload was elided because the
// file is compressed and this row happened to need no compression (spec.md 4.2's "truncated"
// pointer convention; original_source's TRUNCATED_SUBHEADER_ID).
const truncatedSubheaderCompression = 1

type pageHeader struct {
	pageType     format.PageType
	blockCount   int
	subHdrCount int
}

type subheaderPointer struct {
	offset      int
	length      int
	compression int
	subType     int
}

// readPage reads exactly geo.PageLength bytes from rs into buf (sized by the caller), or
// reports eof=true if the stream ended cleanly before any bytes of this page were read.
func readPage(rs io.Reader, buf []byte) (eof bool, err error) {
	n, err := io.ReadFull(rs, buf)
	switch {
	case err == io.EOF && n == 0:
		return true, nil
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		return false, fmt.Errorf("%w: short page read (%d of %d bytes)", errs.ErrTruncated, n, len(buf))
	case err != nil:
		return false, err
	}

	return false, nil
}

func readPageHeader(page []byte, geo header.Geometry) (pageHeader, error) {
	bitOff := geo.PageBitOffset

	rawType, ok := endian.ReadInt(page, bitOff+pageTypeOffset, pageTypeLength, geo.Engine)
	if !ok {
		return pageHeader{}, fmt.Errorf("%w: reading page type", errs.ErrTruncated)
	}

	blockCount, ok := endian.ReadUint(page, bitOff+blockCountOffset, blockCountLength, geo.Engine)
	if !ok {
		return pageHeader{}, fmt.Errorf("%w: reading page block count", errs.ErrTruncated)
	}

	subHdrCount, ok := endian.ReadUint(page, bitOff+subheaderCountOffset, subheaderCountLength, geo.Engine)
	if !ok {
		return pageHeader{}, fmt.Errorf("%w: reading page subheader count", errs.ErrTruncated)
	}

	return pageHeader{
		pageType:    format.PageType(rawType),
		blockCount:  int(blockCount),
		subHdrCount: int(subHdrCount),
	}, nil
}

// readSubheaderPointers reads hdr.subHdrCount subheader pointers immediately following the
// page header. Pointer positions themselves are never shifted by the MIX alignment
// correction — that correction only affects where the row array begins after the pointer
// array ends; see mixRowArrayOffset.
func readSubheaderPointers(page []byte, geo header.Geometry, hdr pageHeader) ([]subheaderPointer, error) {
	il := geo.IntWidth
	ptrWidth := geo.SubheaderPointerWidth
	base := geo.PageBitOffset + subheaderPointersBase

	ptrs := make([]subheaderPointer, 0, hdr.subHdrCount)
	for i := 0; i < hdr.subHdrCount; i++ {
		p := base + i*ptrWidth

		off, ok := endian.ReadUint(page, p, il, geo.Engine)
		if !ok {
			return nil, fmt.Errorf("%w: reading subheader pointer %d offset", errs.ErrTruncated, i)
		}
		length, ok := endian.ReadUint(page, p+il, il, geo.Engine)
		if !ok {
			return nil, fmt.Errorf("%w: reading subheader pointer %d length", errs.ErrTruncated, i)
		}
		compression, ok := endian.ReadUint(page, p+2*il, 1, geo.Engine)
		if !ok {
			return nil, fmt.Errorf("%w: reading subheader pointer %d compression", errs.ErrTruncated, i)
		}
		subType, ok := endian.ReadUint(page, p+2*il+1, 1, geo.Engine)
		if !ok {
			return nil, fmt.Errorf("%w: reading subheader pointer %d type", errs.ErrTruncated, i)
		}

		ptrs = append(ptrs, subheaderPointer{
			offset:      int(off),
			length:      int(length),
			compression: int(compression),
			subType:     int(subType),
		})
	}

	return ptrs, nil
}

// mixRowArrayOffset computes where a MIX page's inline row array begins, after the
// subheader-pointer array (spec.md 4.4). alignment_correction is the pointer array's own byte
// width modulo 8; design notes record this as the authoritative reading of a source expression
// whose operator precedence leaves only the pointer-array width inside the modulo, not an additional
// page-level alignment.
func mixRowArrayOffset(geo header.Geometry, hdr pageHeader, noAlignCorrection bool) int {
	arrayWidth := hdr.subHdrCount * geo.SubheaderPointerWidth
	base := geo.PageBitOffset + subheaderPointersBase + arrayWidth

	if noAlignCorrection {
		return base
	}

	return base + arrayWidth%8
}

// dataRowArrayOffset computes where a DATA page's row array begins: immediately after the
// fixed page header, with no subheader pointers to skip (spec.md 4.4).
func dataRowArrayOffset(geo header.Geometry) int {
	return geo.PageBitOffset + subheaderPointersBase
}
