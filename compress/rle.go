package compress

import (
	"fmt"

	"github.com/OrganicProgramming/SAS-reader/errs"
)

// RLE decompresses a single row's worth of the "SASYZCRL" run-length encoding into exactly
// decompressedLen bytes.
//
// Each opcode byte's high nibble selects the operation; the low nibble seeds the count for
// the short forms. See spec.md 4.6 for the full opcode table. Opcode 0x0 uses the low nibble
// as the high byte of a 16-bit count (lo*256 + next + 64) rather than requiring it to be
// zero — this is the authoritative reading recorded in spec.md's Open Questions, confirmed
// against the Rust original (original_source/src/lib.rs rle_decompress).
func RLE(decompressedLen int, in []byte) ([]byte, error) {
	out := make([]byte, 0, decompressedLen)

	for len(in) > 0 {
		opcode := in[0] & 0xF0
		lo := int(in[0] & 0x0F)
		in = in[1:]

		var err error
		out, in, err = applyRLEOp(opcode, lo, out, in)
		if err != nil {
			return nil, err
		}
	}

	if len(out) != decompressedLen {
		return nil, fmt.Errorf("%w: RLE produced %d bytes, want %d", errs.ErrDecompressedLength, len(out), decompressedLen)
	}

	return out, nil
}

func applyRLEOp(opcode byte, lo int, out, in []byte) ([]byte, []byte, error) {
	need := func(n int) error {
		if len(in) < n {
			return fmt.Errorf("%w: RLE input truncated reading opcode 0x%X", errs.ErrTruncated, opcode)
		}

		return nil
	}

	switch opcode {
	case 0x00:
		if err := need(1); err != nil {
			return out, in, err
		}
		n := lo*256 + int(in[0]) + 64
		in = in[1:]
		if err := need(n); err != nil {
			return out, in, err
		}
		out = append(out, in[:n]...)
		in = in[n:]
	case 0x40:
		if err := need(2); err != nil {
			return out, in, err
		}
		n := lo*256 + int(in[0]) + 18
		b := in[1]
		in = in[2:]
		out = appendRepeat(out, b, n)
	case 0x60:
		if err := need(1); err != nil {
			return out, in, err
		}
		n := lo*256 + int(in[0]) + 17
		in = in[1:]
		out = appendRepeat(out, ' ', n)
	case 0x70:
		if err := need(1); err != nil {
			return out, in, err
		}
		n := lo*256 + int(in[0]) + 17
		in = in[1:]
		out = appendRepeat(out, 0x00, n)
	case 0x80:
		n := lo + 1
		if err := need(n); err != nil {
			return out, in, err
		}
		out = append(out, in[:n]...)
		in = in[n:]
	case 0x90:
		n := lo + 17
		if err := need(n); err != nil {
			return out, in, err
		}
		out = append(out, in[:n]...)
		in = in[n:]
	case 0xA0:
		n := lo + 33
		if err := need(n); err != nil {
			return out, in, err
		}
		out = append(out, in[:n]...)
		in = in[n:]
	case 0xB0:
		n := lo + 49
		if err := need(n); err != nil {
			return out, in, err
		}
		out = append(out, in[:n]...)
		in = in[n:]
	case 0xC0:
		if err := need(1); err != nil {
			return out, in, err
		}
		n := lo + 3
		b := in[0]
		in = in[1:]
		out = appendRepeat(out, b, n)
	case 0xD0:
		out = appendRepeat(out, ' ', lo+2)
	case 0xE0:
		out = appendRepeat(out, 0x00, lo+2)
	case 0xF0:
		out = appendRepeat(out, 0x00, lo+2)
	default:
		return out, in, fmt.Errorf("%w: opcode 0x%X", errs.ErrBadControlByte, opcode)
	}

	return out, in, nil
}

func appendRepeat(out []byte, b byte, n int) []byte {
	for i := 0; i < n; i++ {
		out = append(out, b)
	}

	return out
}
