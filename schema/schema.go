// Package schema holds the column and dataset metadata assembled by walking a SAS7BDAT file's
// metadata pages: column definitions (name, label, format, type, row-byte span) and the
// dataset-level facts (row count, encoding, compression, creation/modification timestamps, the
// creating procedure) that original_source threads through ROW_SIZE/COL_TEXT subheaders.
package schema

import (
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/OrganicProgramming/SAS-reader/format"
)

// Column describes one column's cell type and its byte span within a decompressed row.
type Column struct {
	ID         int
	Name       string
	Label      string
	Format     string
	CType      format.CType
	DataOffset int
	DataLength int
}

// Schema is the fully assembled, read-only description of a dataset: its columns in
// definition order plus the dataset-level facts a caller needs before iterating rows.
type Schema struct {
	Columns     []Column
	RowCount    int
	EncodingID  byte
	Compression format.Compression
	Created     time.Time
	Modified    time.Time
	DatasetName string
	CreatorProc string
	FileType    string
	SASRelease  string
	ServerType  string
	OSName      string
	Platform    string

	byName map[uint64]int
}

// Info bundles the dataset-level facts read from the file header, passed through to New
// alongside the columns assembled from metadata subheaders.
type Info struct {
	EncodingID  byte
	Compression format.Compression
	Created     time.Time
	Modified    time.Time
	DatasetName string
	CreatorProc string
	FileType    string
	SASRelease  string
	ServerType  string
	OSName      string
	Platform    string
}

// New assembles a Schema from its columns, row count, and dataset facts, building the
// xxHash64-keyed name→index lookup used by ColumnIndex.
func New(columns []Column, rowCount int, info Info) *Schema {
	byName := make(map[uint64]int, len(columns))
	for i, c := range columns {
		byName[xxhash.Sum64String(c.Name)] = i
	}

	return &Schema{
		Columns:     columns,
		RowCount:    rowCount,
		EncodingID:  info.EncodingID,
		Compression: info.Compression,
		Created:     info.Created,
		Modified:    info.Modified,
		DatasetName: info.DatasetName,
		CreatorProc: info.CreatorProc,
		FileType:    info.FileType,
		SASRelease:  info.SASRelease,
		ServerType:  info.ServerType,
		OSName:      info.OSName,
		Platform:    info.Platform,
		byName:      byName,
	}
}

// ColumnIndex returns the position of the named column in Columns, or (-1, false) if no column
// with that name exists. Lookup is by xxHash64 of the name rather than a direct string map, so
// that large wide datasets (thousands of columns) resolve lookups without per-call string
// hashing falling back to Go's built-in map hash.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	i, ok := s.byName[xxhash.Sum64String(name)]
	return i, ok
}

// Column returns the column at position i, or the zero Column and false if i is out of range.
func (s *Schema) Column(i int) (Column, bool) {
	if i < 0 || i >= len(s.Columns) {
		return Column{}, false
	}

	return s.Columns[i], true
}
