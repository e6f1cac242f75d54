package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrganicProgramming/SAS-reader/format"
)

func TestSchema(t *testing.T) {
	cols := []Column{
		{ID: 0, Name: "id", CType: format.Numeric, DataOffset: 0, DataLength: 8},
		{ID: 1, Name: "name", CType: format.Text, DataOffset: 8, DataLength: 32},
	}
	s := New(cols, 100, Info{
		EncodingID:  29,
		Compression: format.CompressionRLE,
		DatasetName: "CLASS",
		CreatorProc: "DATASTEP",
		Platform:    "unix",
	})

	t.Run("ColumnIndexFindsByName", func(t *testing.T) {
		i, ok := s.ColumnIndex("name")
		require.True(t, ok)
		require.Equal(t, 1, i)
	})

	t.Run("ColumnIndexMissing", func(t *testing.T) {
		_, ok := s.ColumnIndex("nope")
		require.False(t, ok)
	})

	t.Run("ColumnByPosition", func(t *testing.T) {
		c, ok := s.Column(0)
		require.True(t, ok)
		require.Equal(t, "id", c.Name)
	})

	t.Run("ColumnOutOfRange", func(t *testing.T) {
		_, ok := s.Column(5)
		require.False(t, ok)
	})

	require.Equal(t, 100, s.RowCount)
	require.Equal(t, "DATASTEP", s.CreatorProc)
	require.Equal(t, "unix", s.Platform)
}
