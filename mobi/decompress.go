package mobi

import "fmt"

// Decompressor turns one text record, with its trailing entries already
// stripped, into uncompressed text.
type Decompressor interface {
	Decompress(record []byte) ([]byte, error)
}

// NewDecompressor returns the decompressor selected by ch. huffRecords are
// the HUFF record followed by its CDIC records; they are only consulted for
// CompressionHuffCDIC.
func NewDecompressor(ch CompressionHeader, huffRecords [][]byte) (Decompressor, error) {
	switch ch.Compression {
	case CompressionNone:
		return identity{}, nil
	case CompressionPalmDOC:
		return palmDOC{}, nil
	case CompressionHuffCDIC:
		if len(huffRecords) == 0 {
			return nil, fmt.Errorf("mobi: huff/cdic book without huffman records: %w", ErrMalformedHeader)
		}
		return NewHuffCDIC(huffRecords[0], huffRecords[1:]...)
	default:
		return nil, fmt.Errorf("mobi: compression mode %v: %w", ch.Compression, ErrUnsupported)
	}
}

// identity returns records unchanged.
type identity struct{}

func (identity) Decompress(record []byte) ([]byte, error) {
	return record, nil
}

// Strip removes the trailing entries described by t from record and returns
// the usable span. Each trailing entry ends in a backward varint holding the
// entry's total size; the multibyte section is removed last and its size is
// the low two bits of its final byte plus one.
func (t TrailingFlags) Strip(record []byte) ([]byte, error) {
	end := len(record)
	for i := uint(0); i < t.Entries; i++ {
		size, _, err := DecodeVarint(record[:end], Backward)
		if err != nil {
			return nil, fmt.Errorf("mobi: trailing entry %d: %w", i, err)
		}
		if size > uint64(end) {
			return nil, fmt.Errorf("mobi: trailing entry %d size %d exceeds record (%d bytes): %w", i, size, end, ErrTruncated)
		}
		end -= int(size)
	}
	if t.Multibyte && end > 0 {
		n := int(record[end-1]&0x3) + 1
		if n > end {
			return nil, fmt.Errorf("mobi: multibyte tail of %d bytes exceeds record: %w", n, ErrTruncated)
		}
		end -= n
	}
	return record[:end], nil
}
