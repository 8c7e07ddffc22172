package mobi

import (
	"fmt"
	"io"
	"math"

	"github.com/sawyersteven/KindleManager-sub001/internal/fileutil"
)

// SetMetadata replaces the bibliographic fields. The keyed metadata block
// is updated immediately; the container is rewritten by WriteFile or Dump.
func (b *Book) SetMetadata(md Metadata) {
	applyMetadata(b.exth, md, b.header.Encoding)
	b.metadata = copyMetadata(md)
	if md.Title != "" {
		b.header.Title = encodeText(b.header.Encoding, md.Title)
	}
	b.metadata.Title = b.title()
}

// buildRecord0 lays out the compression header, the format header, the
// keyed metadata block and the title.
func (b *Book) buildRecord0() []byte {
	hdr := *b.header
	exth := []byte(nil)
	if b.exth.Len() > 0 {
		exth = b.exth.Dump()
	}
	hdr.SetEXTH(exth != nil)

	hdrBytes := hdr.Dump()
	hdr.TitleOffset = uint32(headerBase + len(hdrBytes) + len(exth))
	hdr.TitleLength = uint32(len(hdr.Title))
	hdrBytes = hdr.Dump()

	size := headerBase + len(hdrBytes) + len(exth) + len(hdr.Title) + 2
	size = (size + 3) &^ 3

	rec := make([]byte, 0, size)
	rec = append(rec, b.compression.Dump()...)
	rec = append(rec, hdrBytes...)
	rec = append(rec, exth...)
	rec = append(rec, hdr.Title...)
	return append(rec, make([]byte, size-len(rec))...)
}

// Dump writes the whole container to w: a regenerated record table, the
// rebuilt record 0 and every other record copied unchanged.
func (b *Book) Dump(w io.Writer) error {
	rec0 := b.buildRecord0()

	pdb := *b.pdb
	pdb.Offsets = make([]uint32, len(b.pdb.Offsets))
	pdb.Offsets[0] = uint32(pdb.Size())

	var tail int64
	if len(b.pdb.Offsets) > 1 {
		tail = int64(b.pdb.Offsets[1])
		shift := int64(pdb.Offsets[0]) + int64(len(rec0)) - tail
		for i := 1; i < len(pdb.Offsets); i++ {
			off := int64(b.pdb.Offsets[i]) + shift
			if off < 0 || off > math.MaxUint32 {
				return fmt.Errorf("mobi: record %d offset %d out of range after rewrite: %w", i, off, ErrRecordOutOfRange)
			}
			pdb.Offsets[i] = uint32(off)
		}
	}

	if _, err := w.Write(pdb.Dump()); err != nil {
		return fmt.Errorf("mobi: write record table: %w", err)
	}
	if _, err := w.Write(rec0); err != nil {
		return fmt.Errorf("mobi: write record 0: %w", err)
	}
	if tail > 0 {
		if _, err := io.Copy(w, io.NewSectionReader(b.r, tail, b.size-tail)); err != nil {
			return fmt.Errorf("mobi: copy records: %w", err)
		}
	}
	return nil
}

// WriteFile writes the container to path through a temporary file that
// replaces path only on success. path may be the file the Book was opened
// from.
func (b *Book) WriteFile(path string) error {
	return fileutil.WriteTmpThenMove(path, b.Dump)
}
