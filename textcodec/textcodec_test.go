package textcodec

import (
	"testing"

	"github.com/OrganicProgramming/SAS-reader/errs"
	"github.com/stretchr/testify/require"
)

func TestForID(t *testing.T) {
	t.Run("KnownUTF8", func(t *testing.T) {
		dec, err := ForID(20)
		require.NoError(t, err)
		out, err := dec.Decode([]byte("hello"))
		require.NoError(t, err)
		require.Equal(t, "hello", out)
	})

	t.Run("KnownLatin1HighByte", func(t *testing.T) {
		dec, err := ForID(29)
		require.NoError(t, err)
		// 0xE9 in Latin-1 is 'é'.
		out, err := dec.Decode([]byte{0xE9})
		require.NoError(t, err)
		require.Equal(t, "é", out)
	})

	t.Run("UnknownID", func(t *testing.T) {
		_, err := ForID(255)
		require.ErrorIs(t, err, errs.ErrUnknownEncoding)
	})

	t.Run("IDRoundTrips", func(t *testing.T) {
		dec, err := ForID(62)
		require.NoError(t, err)
		require.Equal(t, byte(62), dec.ID())
	})
}
