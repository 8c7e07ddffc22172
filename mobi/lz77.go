package mobi

import "fmt"

// palmDOC decodes the byte-oriented LZ77 variant.
type palmDOC struct{}

func (palmDOC) Decompress(record []byte) ([]byte, error) {
	return DecompressPalmDOC(record)
}

// DecompressPalmDOC decodes src until it is exhausted. Each byte is either a
// literal, a count of raw bytes to copy, a two-byte back-reference, or a
// space followed by a 7-bit character.
func DecompressPalmDOC(src []byte) ([]byte, error) {
	out := make([]byte, 0, len(src)*2)
	for i := 0; i < len(src); {
		c := src[i]
		i++
		switch {
		case c == 0x00 || (c >= 0x09 && c <= 0x7F):
			out = append(out, c)

		case c <= 0x08:
			n := int(c)
			if i+n > len(src) {
				return nil, fmt.Errorf("mobi: literal run of %d at %d: %w", n, i-1, ErrTruncated)
			}
			out = append(out, src[i:i+n]...)
			i += n

		case c <= 0xBF:
			if i >= len(src) {
				return nil, fmt.Errorf("mobi: back-reference at %d: %w", i-1, ErrTruncated)
			}
			key := uint16(c)<<8 | uint16(src[i])
			i++
			distance := int(key>>3) & 0x7FF
			length := int(key&0x7) + 3
			if distance == 0 || distance > len(out) {
				return nil, fmt.Errorf("mobi: distance %d with %d bytes of output: %w", distance, len(out), ErrInvalidBackReference)
			}
			// One byte at a time: a distance shorter than the length repeats
			// the bytes just written.
			for j := 0; j < length; j++ {
				out = append(out, out[len(out)-distance])
			}

		default:
			out = append(out, ' ', c^0x80)
		}
	}
	return out, nil
}
