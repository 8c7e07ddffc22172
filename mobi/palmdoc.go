package mobi

import (
	"encoding/binary"
	"fmt"
)

// Compression identifies the text compression scheme of a book.
type Compression uint16

const (
	// CompressionNone stores text records verbatim.
	CompressionNone Compression = 1

	// CompressionPalmDOC is the byte-oriented LZ77 variant.
	CompressionPalmDOC Compression = 2

	// CompressionHuffCDIC is the Huffman plus phrase dictionary scheme.
	CompressionHuffCDIC Compression = 17480
)

// String returns a short name for the compression mode.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionPalmDOC:
		return "palmdoc"
	case CompressionHuffCDIC:
		return "huff/cdic"
	default:
		return fmt.Sprintf("compression(%d)", uint16(c))
	}
}

const (
	// compressionHeaderSize is the fixed size of the compression header
	// at the start of record 0.
	compressionHeaderSize = 16

	// DefaultRecordSize is the uncompressed size of every text record but
	// the last.
	DefaultRecordSize = 4096
)

// CompressionHeader describes how the text records of a book are encoded.
type CompressionHeader struct {
	Compression Compression
	TextLength  uint32
	RecordCount uint16
	RecordSize  uint16
	Encryption  uint16
}

// ParseCompressionHeader decodes the 16-byte compression header. Unknown
// compression modes and any encryption are rejected with ErrUnsupported.
func ParseCompressionHeader(buf []byte) (CompressionHeader, error) {
	f := newFields(buf, binary.BigEndian, "compression header")
	ch := CompressionHeader{
		Compression: Compression(f.u16(0)),
		TextLength:  f.u32(4),
		RecordCount: f.u16(8),
		RecordSize:  f.u16(10),
		Encryption:  f.u16(12),
	}
	if f.err != nil {
		return CompressionHeader{}, f.err
	}

	switch ch.Compression {
	case CompressionNone, CompressionPalmDOC, CompressionHuffCDIC:
	default:
		return CompressionHeader{}, fmt.Errorf("mobi: compression mode %d: %w", uint16(ch.Compression), ErrUnsupported)
	}
	if ch.Encryption != 0 {
		return CompressionHeader{}, fmt.Errorf("mobi: encryption type %d: %w: %w", ch.Encryption, ErrUnsupported, ErrEncrypted)
	}
	if ch.RecordSize == 0 {
		ch.RecordSize = DefaultRecordSize
	}
	return ch, nil
}

// Dump serializes the compression header.
func (ch CompressionHeader) Dump() []byte {
	buf := make([]byte, compressionHeaderSize)
	p := putFields{buf: buf, order: binary.BigEndian}
	p.u16(0, uint16(ch.Compression))
	p.u32(4, ch.TextLength)
	p.u16(8, ch.RecordCount)
	p.u16(10, ch.RecordSize)
	p.u16(12, ch.Encryption)
	return buf
}
