package header

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/OrganicProgramming/SAS-reader/format"
)

// build32LE constructs a minimal, valid 32-bit little-endian header of exactly
// defaultHeaderPrefix (288) bytes, with the given dataset name and page geometry.
func build32LE(t *testing.T, datasetName string, pageLen, pageCount int, encodingID byte) []byte {
	t.Helper()

	buf := make([]byte, defaultHeaderPrefix)
	copy(buf, magic)
	// align1Offset left 0 (32-bit); align2Offset left 0 (no extra align).
	buf[endianOffset] = 0x01 // little-endian
	buf[platformOff] = '1'
	buf[encodingOff] = encodingID
	copy(buf[datasetOffset:], datasetName)
	copy(buf[fileTypeOff:], "DATA")
	binary.LittleEndian.PutUint64(buf[dateCreateOff:], 0)
	binary.LittleEndian.PutUint64(buf[dateModOff:], 0)
	binary.LittleEndian.PutUint32(buf[hdrSizeOff:], uint32(defaultHeaderPrefix))
	binary.LittleEndian.PutUint32(buf[pageSizeOff:], uint32(pageLen))
	binary.LittleEndian.PutUint32(buf[pageCountOff:], uint32(pageCount))
	copy(buf[sasReleaseOff:], "9.0401M")
	buf[osNameOff] = 'L' // non-zero so OSName reads from OS_NAME, not OS_MAKER
	copy(buf[osNameOff:], "Linux")

	return buf
}

func TestParse(t *testing.T) {
	t.Run("ValidHeader", func(t *testing.T) {
		buf := build32LE(t, "CLASS", 1024, 3, 29)
		info, err := Parse(bytes.NewReader(buf))
		require.NoError(t, err)
		require.False(t, info.Geometry.U64)
		require.Equal(t, 4, info.Geometry.IntWidth)
		require.Equal(t, 1024, info.Geometry.PageLength)
		require.Equal(t, 3, info.Geometry.PageCount)
		require.Equal(t, "CLASS", info.DatasetName)
		require.Equal(t, byte(29), info.EncodingID)
		require.True(t, info.Created.Equal(format.SasEpoch))
		require.Equal(t, "Linux", info.OSName)
		require.Equal(t, "unix", info.Platform)
	})

	t.Run("BadMagic", func(t *testing.T) {
		buf := build32LE(t, "CLASS", 1024, 1, 29)
		buf[0] = 0xFF
		_, err := Parse(bytes.NewReader(buf))
		require.ErrorIs(t, err, errs.ErrBadMagic)
	})

	t.Run("TruncatedPrefix", func(t *testing.T) {
		buf := build32LE(t, "CLASS", 1024, 1, 29)[:100]
		_, err := Parse(bytes.NewReader(buf))
		require.ErrorIs(t, err, errs.ErrTruncated)
	})

	t.Run("SixtyFourBitWrongHeaderLengthRejected", func(t *testing.T) {
		buf := build32LE(t, "CLASS", 1024, 1, 29)
		buf[align1Offset] = 51
		binary.LittleEndian.PutUint32(buf[hdrSizeOff:], uint32(defaultHeaderPrefix))
		_, err := Parse(bytes.NewReader(buf))
		require.ErrorIs(t, err, errs.ErrGeometryInvariant)
	})

	t.Run("SeeksStreamToHeaderStart", func(t *testing.T) {
		buf := build32LE(t, "CLASS", 1024, 1, 29)
		r := bytes.NewReader(buf)
		_, err := r.Seek(50, io.SeekStart)
		require.NoError(t, err)
		_, err = Parse(r)
		require.NoError(t, err)
	})
}
