package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Book is an opened MOBI/AZW/AZW3 container.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer

	pdb         *PDBHeader
	record0     []byte
	compression CompressionHeader
	header      *FormatHeader
	exth        *EXTH
	metadata    Metadata
	warnings    []string
}

// Option configures Open and NewReader.
type Option func(*options)

type options struct {
	variant    Variant
	hasVariant bool
}

// WithVariant forces the format header layout instead of detecting it from
// the file extension or the declared file version.
func WithVariant(v Variant) Option {
	return func(o *options) {
		o.variant = v
		o.hasVariant = true
	}
}

// Open opens the container at path. Files with an .azw3 extension use the
// KF8 header layout; other files are detected from their file version.
// The caller must call Close when done reading from the book.
func Open(path string, opts ...Option) (*Book, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mobi: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mobi: stat %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".azw3") {
		opts = append([]Option{WithVariant(VariantKF8)}, opts...)
	}

	b, err := newBook(f, info.Size(), f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return b, nil
}

// NewReader opens a container from an io.ReaderAt of the given size. The
// caller is responsible for the lifetime of r.
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Book, error) {
	return newBook(r, size, nil, opts)
}

func newBook(r io.ReaderAt, size int64, closer io.Closer, opts []Option) (*Book, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	b := &Book{r: r, size: size, closer: closer}

	pdb, err := ParsePDB(r)
	if err != nil {
		return nil, err
	}
	if len(pdb.Offsets) == 0 {
		return nil, fmt.Errorf("mobi: container has no records: %w", ErrMalformedHeader)
	}
	b.pdb = pdb

	b.record0, err = pdb.ReadRecord(r, 0, size)
	if err != nil {
		return nil, err
	}

	b.compression, err = ParseCompressionHeader(b.record0)
	if err != nil {
		return nil, err
	}

	variant := o.variant
	if !o.hasVariant {
		fv := newFields(b.record0, binary.BigEndian, "format header")
		variant = DetectVariant(fv.u32(headerBase + offFileVersion))
	}

	b.header, err = ParseFormatHeader(bytes.NewReader(b.record0), headerBase, variant)
	if err != nil {
		return nil, err
	}
	if b.header.HasDRM() {
		return nil, fmt.Errorf("mobi: DRM section present: %w: %w", ErrUnsupported, ErrEncrypted)
	}

	b.exth = NewEXTH()
	if b.header.HasEXTH() {
		start := headerBase + int(b.header.Length)
		if start > len(b.record0) {
			return nil, fmt.Errorf("mobi: keyed metadata offset %d beyond record 0: %w", start, ErrTruncated)
		}
		b.exth, err = ParseEXTH(b.record0[start:])
		if err != nil {
			return nil, err
		}
	}

	b.metadata = metadataFromEXTH(b.exth, b.header.Encoding)
	b.metadata.Title = b.title()
	return b, nil
}

// title prefers the updated-title record over the full name.
func (b *Book) title() string {
	if v, ok := b.exth.Get(EXTHUpdatedTitle); ok {
		if s, err := decodeText(b.header.Encoding, v); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	s, err := decodeText(b.header.Encoding, b.header.Title)
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("cannot decode full name: %v", err))
		return ""
	}
	return strings.TrimSpace(s)
}

// Close releases resources held by the Book. Close is idempotent.
func (b *Book) Close() error {
	if b.closer != nil {
		err := b.closer.Close()
		b.closer = nil
		return err
	}
	return nil
}

// Metadata returns the decoded bibliographic fields.
func (b *Book) Metadata() Metadata {
	return copyMetadata(b.metadata)
}

// Warnings returns the non-fatal problems met while parsing.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// Header returns the parsed format header.
func (b *Book) Header() *FormatHeader {
	return b.header
}

// Compression returns the parsed compression header.
func (b *Book) Compression() CompressionHeader {
	return b.compression
}

// EXTH returns the keyed metadata block. Changes made to it are written by
// WriteFile.
func (b *Book) EXTH() *EXTH {
	return b.exth
}

// RecordCount returns the number of records in the container.
func (b *Book) RecordCount() int {
	return len(b.pdb.Offsets)
}

// Record returns a copy of record i.
func (b *Book) Record(i int) ([]byte, error) {
	return b.pdb.ReadRecord(b.r, i, b.size)
}

// Text decompresses every text record and returns the book's markup as
// UTF-8. A failure in any record fails the whole call.
func (b *Book) Text() ([]byte, error) {
	dec, err := b.decompressor()
	if err != nil {
		return nil, err
	}

	trailing := b.header.Trailing()
	count := int(b.compression.RecordCount)
	if count >= len(b.pdb.Offsets) {
		return nil, fmt.Errorf("mobi: %d text records in a %d record container: %w",
			count, len(b.pdb.Offsets), ErrRecordOutOfRange)
	}

	text := make([]byte, 0, b.compression.TextLength)
	for i := 1; i <= count; i++ {
		rec, err := b.Record(i)
		if err != nil {
			return nil, err
		}
		usable, err := trailing.Strip(rec)
		if err != nil {
			return nil, fmt.Errorf("mobi: text record %d: %w", i, err)
		}
		out, err := dec.Decompress(usable)
		if err != nil {
			return nil, fmt.Errorf("mobi: text record %d: %w", i, err)
		}
		text = append(text, out...)
	}
	if uint32(len(text)) > b.compression.TextLength {
		text = text[:b.compression.TextLength]
	}

	if b.header.Encoding == EncodingCP1252 {
		s, err := decodeText(EncodingCP1252, text)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	}
	return text, nil
}

func (b *Book) decompressor() (Decompressor, error) {
	var huff [][]byte
	if b.compression.Compression == CompressionHuffCDIC {
		first := int(b.header.HuffmanRecordOffset)
		for i := 0; i < int(b.header.HuffmanRecordCount); i++ {
			rec, err := b.Record(first + i)
			if err != nil {
				return nil, fmt.Errorf("mobi: huffman record %d: %w", i, err)
			}
			huff = append(huff, rec)
		}
	}
	return NewDecompressor(b.compression, huff)
}
