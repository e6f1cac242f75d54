package compress

import (
	"fmt"

	"github.com/OrganicProgramming/SAS-reader/errs"
)

// RDC decompresses a single row's worth of the "SASYZCR2" Ross Data Compression encoding into
// exactly decompressedLen bytes.
//
// A 16-bit control word is read big-endian ((hi<<8)|lo) every 16 items; each bit from MSB to
// LSB selects whether the next item is a literal byte or a back-reference/run command. See
// spec.md 4.7 for the command table. The control-word load direction is one of spec.md's
// recorded Open Questions: the authoritative reading is (hi<<8)|lo, not hi<<(8+lo).
func RDC(decompressedLen int, in []byte) ([]byte, error) {
	out := make([]byte, 0, decompressedLen)

	var ctrlBits, ctrlMask uint16
	pos := 0

	for pos < len(in) {
		ctrlMask >>= 1
		if ctrlMask == 0 {
			if pos+2 > len(in) {
				return nil, fmt.Errorf("%w: RDC control word truncated", errs.ErrTruncated)
			}
			ctrlBits = uint16(in[pos])<<8 | uint16(in[pos+1])
			pos += 2
			ctrlMask = 0x8000
		}

		if ctrlBits&ctrlMask == 0 {
			if pos >= len(in) {
				return nil, fmt.Errorf("%w: RDC literal truncated", errs.ErrTruncated)
			}
			out = append(out, in[pos])
			pos++
			continue
		}

		if pos >= len(in) {
			return nil, fmt.Errorf("%w: RDC command byte truncated", errs.ErrTruncated)
		}
		cmd := (in[pos] >> 4) & 0x0F
		cnt := int(in[pos] & 0x0F)
		pos++

		var err error
		out, pos, err = applyRDCCmd(cmd, cnt, out, in, pos)
		if err != nil {
			return nil, err
		}
	}

	if len(out) != decompressedLen {
		return nil, fmt.Errorf("%w: RDC produced %d bytes, want %d", errs.ErrDecompressedLength, len(out), decompressedLen)
	}

	return out, nil
}

func applyRDCCmd(cmd byte, cnt int, out, in []byte, pos int) ([]byte, int, error) {
	need := func(n int) error {
		if pos+n > len(in) {
			return fmt.Errorf("%w: RDC input truncated reading cmd %d", errs.ErrTruncated, cmd)
		}

		return nil
	}

	switch {
	case cmd == 0:
		if err := need(1); err != nil {
			return out, pos, err
		}
		cnt += 3
		b := in[pos]
		pos++
		out = appendRepeat(out, b, cnt)
	case cmd == 1:
		if err := need(1); err != nil {
			return out, pos, err
		}
		cnt += int(in[pos])<<4 + 19
		pos++
		if err := need(1); err != nil {
			return out, pos, err
		}
		b := in[pos]
		pos++
		out = appendRepeat(out, b, cnt)
	case cmd == 2:
		if err := need(1); err != nil {
			return out, pos, err
		}
		ofs := cnt + 3 + int(in[pos])<<4
		pos++
		if err := need(1); err != nil {
			return out, pos, err
		}
		cnt = int(in[pos]) + 16
		pos++
		var err error
		out, err = backCopy(out, ofs, cnt)
		if err != nil {
			return out, pos, err
		}
	case cmd >= 3 && cmd <= 15:
		if err := need(1); err != nil {
			return out, pos, err
		}
		ofs := cnt + 3 + int(in[pos])<<4
		pos++
		var err error
		out, err = backCopy(out, ofs, int(cmd))
		if err != nil {
			return out, pos, err
		}
	default:
		return out, pos, fmt.Errorf("%w: RDC command %d", errs.ErrBadCommand, cmd)
	}

	return out, pos, nil
}

func backCopy(out []byte, ofs, cnt int) ([]byte, error) {
	start := len(out) - ofs
	if start < 0 {
		return out, fmt.Errorf("%w: RDC back-reference offset %d exceeds output length %d", errs.ErrBadCommand, ofs, len(out))
	}

	for i := 0; i < cnt; i++ {
		out = append(out, out[start+i])
	}

	return out, nil
}
