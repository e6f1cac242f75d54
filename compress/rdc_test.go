package compress

import (
	"testing"

	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/stretchr/testify/require"
)

func TestRDC(t *testing.T) {
	t.Run("RepeatByteCmd0", func(t *testing.T) {
		// control word 0x8000 sets the MSB so the single item is a command, not a literal.
		// command byte 0x00 -> cmd=0, cnt=0 (+3 = 3); repeats the byte that follows (0xAB).
		in := []byte{0x80, 0x00, 0x00, 0xAB}
		out, err := RDC(3, in)
		require.NoError(t, err)
		require.Equal(t, []byte{0xAB, 0xAB, 0xAB}, out)
	})

	t.Run("LiteralsThenBackCopy", func(t *testing.T) {
		// control word 0x0800: first four tested bits are 0 (literal 'a','b','c','d'), the
		// fifth bit is 1, selecting a cmd=3 back-copy of 3 bytes from 3 bytes back ("bcd").
		in := []byte{0x08, 0x00, 'a', 'b', 'c', 'd', 0x30, 0x00}
		out, err := RDC(7, in)
		require.NoError(t, err)
		require.Equal(t, []byte("abcdbcd"), out)
	})

	t.Run("DecompressedLengthMismatch", func(t *testing.T) {
		in := []byte{0x80, 0x00, 0x00, 0xAB}
		_, err := RDC(5, in)
		require.ErrorIs(t, err, errs.ErrDecompressedLength)
	})

	t.Run("TruncatedControlWord", func(t *testing.T) {
		in := []byte{0x80}
		_, err := RDC(1, in)
		require.ErrorIs(t, err, errs.ErrTruncated)
	})

	t.Run("BackCopyOffsetTooLarge", func(t *testing.T) {
		// control word selects a command immediately; cmd=3, cnt=0, next=0x0F -> ofs huge.
		in := []byte{0x80, 0x00, 0x30, 0x0F}
		_, err := RDC(3, in)
		require.ErrorIs(t, err, errs.ErrBadCommand)
	})
}
