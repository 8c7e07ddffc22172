package mobi

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// testMOBI describes a synthetic container for buildTestMOBI.
type testMOBI struct {
	variant     Variant
	compression Compression
	encoding    uint32
	title       string
	exth        *EXTH

	// text holds the text records exactly as stored: compressed and with
	// any trailing entries appended.
	text       [][]byte
	textLength int
	extraFlags uint32

	huff   [][]byte
	images [][]byte
	drm    bool
}

var (
	flisRecord = []byte("FLIS\x00\x00\x00\x08\x00\x41")
	eofRecord  = []byte{0xE9, 0x8E, 0x0D, 0x0A}
)

// buildTestMOBI lays out record 0, the text records, the huffman records,
// the image records and the trailing FLIS/EOF records, and returns the
// container bytes.
func buildTestMOBI(t *testing.T, m testMOBI) []byte {
	t.Helper()

	if m.compression == 0 {
		m.compression = CompressionNone
	}
	if m.encoding == 0 {
		m.encoding = EncodingUTF8
	}

	records := [][]byte{nil}
	records = append(records, m.text...)

	hdr := NewFormatHeader(m.variant)
	hdr.Encoding = m.encoding
	hdr.ExtraDataFlags = m.extraFlags
	hdr.Content = ContentBounds{First: 1, Last: uint16(len(m.text))}
	if len(m.huff) > 0 {
		hdr.HuffmanRecordOffset = uint32(len(records))
		hdr.HuffmanRecordCount = uint32(len(m.huff))
		records = append(records, m.huff...)
	}
	if len(m.images) > 0 {
		hdr.FirstImageIndex = uint32(len(records))
		records = append(records, m.images...)
	}
	records = append(records, flisRecord, eofRecord)
	if m.drm {
		hdr.DRMOffset = 400
		hdr.DRMCount = 1
	}

	var exth []byte
	if m.exth != nil && m.exth.Len() > 0 {
		exth = m.exth.Dump()
		hdr.SetEXTH(true)
	}
	hdr.TitleOffset = uint32(headerBase) + hdr.Length + uint32(len(exth))
	hdr.TitleLength = uint32(len(m.title))

	ch := CompressionHeader{
		Compression: m.compression,
		TextLength:  uint32(m.textLength),
		RecordCount: uint16(len(m.text)),
		RecordSize:  DefaultRecordSize,
	}
	var rec0 bytes.Buffer
	rec0.Write(ch.Dump())
	rec0.Write(hdr.Dump())
	rec0.Write(exth)
	rec0.WriteString(m.title)
	rec0.Write([]byte{0, 0, 0, 0})
	records[0] = rec0.Bytes()

	pdb := &PDBHeader{Name: "test", Offsets: make([]uint32, len(records))}
	copy(pdb.Type[:], "BOOK")
	copy(pdb.Creator[:], "MOBI")
	off := uint32(pdb.Size())
	for i, r := range records {
		pdb.Offsets[i] = off
		off += uint32(len(r))
	}

	var out bytes.Buffer
	out.Write(pdb.Dump())
	for _, r := range records {
		out.Write(r)
	}
	return out.Bytes()
}

// openTestMOBI builds a container and opens it from memory.
func openTestMOBI(t *testing.T, m testMOBI) *Book {
	t.Helper()
	data := buildTestMOBI(t, m)
	b, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	return b
}

// writeTestMOBI builds a container and writes it to a temporary file.
func writeTestMOBI(t *testing.T, name string, m testMOBI) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(fp, buildTestMOBI(t, m), 0o644); err != nil {
		t.Fatalf("writeTestMOBI: %v", err)
	}
	return fp
}

// sampleEXTH returns a keyed metadata block with the usual fields.
func sampleEXTH() *EXTH {
	e := NewEXTH()
	e.SetString(EXTHAuthor, "Jane Austen")
	e.SetString(EXTHPublisher, "T. Egerton")
	e.SetString(EXTHISBN, "9780141439518")
	e.SetString(EXTHSubject, "Fiction; Romance")
	e.SetString(EXTHPublishDate, "1813-01-28")
	e.SetString(EXTHLanguage, "en")
	return e
}

var (
	jpegImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'p', 'g'}
	pngImage  = []byte{0x89, 'P', 'N', 'G', '\r', '\n'}
)
