package mobi

import "fmt"

// Orientation selects which end of a variable-width integer carries the
// stop flag (bit 7).
type Orientation int

const (
	// Forward integers are read from the start of a buffer; the stop flag
	// sits on the last byte of the number.
	Forward Orientation = iota

	// Backward integers are read from the end of a buffer toward its start;
	// the stop flag sits on the first (most significant) byte of the number.
	Backward
)

// maxVarintLen is the longest encoding accepted by DecodeVarint.
const maxVarintLen = 10

// EncodeVarint encodes n as big-endian 7-bit groups with the stop flag
// placed according to o.
func EncodeVarint(n uint64, o Orientation) []byte {
	var groups [maxVarintLen]byte
	i := len(groups)
	for {
		i--
		groups[i] = byte(n & 0x7F)
		n >>= 7
		if n == 0 {
			break
		}
	}
	out := append([]byte(nil), groups[i:]...)
	if o == Forward {
		out[len(out)-1] |= 0x80
	} else {
		out[0] |= 0x80
	}
	return out
}

// DecodeVarint decodes a variable-width integer from buf and reports how many
// bytes it occupied. Forward integers start at buf[0]; Backward integers end
// at buf[len(buf)-1].
func DecodeVarint(buf []byte, o Orientation) (uint64, int, error) {
	if o == Forward {
		var v uint64
		for i, b := range buf {
			if i == maxVarintLen {
				break
			}
			v = v<<7 | uint64(b&0x7F)
			if b&0x80 != 0 {
				return v, i + 1, nil
			}
		}
		return 0, 0, fmt.Errorf("mobi: forward varint without stop byte: %w", ErrTruncated)
	}

	var v uint64
	shift := 0
	for i := len(buf) - 1; i >= 0; i-- {
		n := len(buf) - i
		if n > maxVarintLen {
			break
		}
		b := buf[i]
		v |= uint64(b&0x7F) << shift
		shift += 7
		if b&0x80 != 0 {
			return v, n, nil
		}
	}
	return 0, 0, fmt.Errorf("mobi: backward varint without stop byte: %w", ErrTruncated)
}
