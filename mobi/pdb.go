package mobi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// pdbHeaderSize is the fixed size of the database header that precedes
	// the record table.
	pdbHeaderSize = 78

	// pdbRecordEntrySize is the size of one record table entry:
	// offset (4), attributes (1), unique id (3).
	pdbRecordEntrySize = 8

	// pdbGapSize is the padding written after the record table.
	pdbGapSize = 2

	pdbNameSize = 32
)

// PDBHeader is the outer record-table header of a Palm database container.
type PDBHeader struct {
	Name         string
	Attributes   uint16
	Version      uint16
	Created      uint32
	Modified     uint32
	Backup       uint32
	ModNumber    uint32
	AppInfoID    uint32
	SortInfoID   uint32
	Type         [4]byte
	Creator      [4]byte
	UniqueIDSeed uint32
	NextRecordID uint32

	// Offsets holds the start offset of every record, in record order.
	Offsets []uint32
}

// ParsePDB reads the container header and record table from r. Only the
// structural shape is checked; offsets must not decrease.
func ParsePDB(r io.ReaderAt) (*PDBHeader, error) {
	return parsePDB(r, binary.BigEndian)
}

func parsePDB(r io.ReaderAt, order binary.ByteOrder) (*PDBHeader, error) {
	buf := make([]byte, pdbHeaderSize)
	if err := readAt(r, buf, 0); err != nil {
		return nil, fmt.Errorf("mobi: read database header: %w", err)
	}

	f := newFields(buf, order, "database header")
	h := &PDBHeader{
		Name:         string(bytes.TrimRight(buf[:pdbNameSize], "\x00")),
		Attributes:   f.u16(32),
		Version:      f.u16(34),
		Created:      f.u32(36),
		Modified:     f.u32(40),
		Backup:       f.u32(44),
		ModNumber:    f.u32(48),
		AppInfoID:    f.u32(52),
		SortInfoID:   f.u32(56),
		UniqueIDSeed: f.u32(68),
		NextRecordID: f.u32(72),
	}
	copy(h.Type[:], buf[60:64])
	copy(h.Creator[:], buf[64:68])
	count := int(f.u16(76))
	if f.err != nil {
		return nil, f.err
	}

	table := make([]byte, count*pdbRecordEntrySize)
	if err := readAt(r, table, pdbHeaderSize); err != nil {
		return nil, fmt.Errorf("mobi: read record table (%d records): %w", count, err)
	}

	h.Offsets = make([]uint32, count)
	for i := range h.Offsets {
		h.Offsets[i] = order.Uint32(table[i*pdbRecordEntrySize:])
		if i > 0 && h.Offsets[i] < h.Offsets[i-1] {
			return nil, fmt.Errorf("mobi: record %d offset %d precedes record %d: %w",
				i, h.Offsets[i], i-1, ErrMalformedHeader)
		}
	}
	return h, nil
}

// Size returns the number of bytes Dump produces: the fixed header, the
// record table and its trailing gap.
func (h *PDBHeader) Size() int {
	return pdbHeaderSize + len(h.Offsets)*pdbRecordEntrySize + pdbGapSize
}

// Dump serializes the header with a freshly generated record table. The
// attribute/uid word of record i is always (i*2) & 0xFFFFFF; the values
// read by ParsePDB are not preserved.
func (h *PDBHeader) Dump() []byte {
	return h.dump(binary.BigEndian)
}

func (h *PDBHeader) dump(order binary.ByteOrder) []byte {
	buf := make([]byte, h.Size())
	p := putFields{buf: buf, order: order}

	name := []byte(h.Name)
	if len(name) > pdbNameSize-1 {
		name = name[:pdbNameSize-1]
	}
	p.bytes(0, name)
	p.u16(32, h.Attributes)
	p.u16(34, h.Version)
	p.u32(36, h.Created)
	p.u32(40, h.Modified)
	p.u32(44, h.Backup)
	p.u32(48, h.ModNumber)
	p.u32(52, h.AppInfoID)
	p.u32(56, h.SortInfoID)
	p.bytes(60, h.Type[:])
	p.bytes(64, h.Creator[:])
	p.u32(68, h.UniqueIDSeed)
	p.u32(72, h.NextRecordID)
	p.u16(76, uint16(len(h.Offsets)))

	for i, off := range h.Offsets {
		pos := pdbHeaderSize + i*pdbRecordEntrySize
		p.u32(pos, off)
		p.u32(pos+4, uint32(i*2)&0xFFFFFF)
	}
	return buf
}

// RecordLength returns the length of record i. The last record extends to
// the end of the stream, so the caller supplies the total stream length.
func (h *PDBHeader) RecordLength(i int, total int64) (int64, error) {
	if i < 0 || i >= len(h.Offsets) {
		return 0, fmt.Errorf("mobi: record %d of %d: %w", i, len(h.Offsets), ErrRecordOutOfRange)
	}
	end := total
	if i+1 < len(h.Offsets) {
		end = int64(h.Offsets[i+1])
	}
	n := end - int64(h.Offsets[i])
	if n < 0 {
		return 0, fmt.Errorf("mobi: record %d ends before it starts: %w", i, ErrTruncated)
	}
	return n, nil
}

// ReadRecord returns a copy of record i read from r.
func (h *PDBHeader) ReadRecord(r io.ReaderAt, i int, total int64) ([]byte, error) {
	n, err := h.RecordLength(i, total)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if err := readAt(r, buf, int64(h.Offsets[i])); err != nil {
		return nil, fmt.Errorf("mobi: read record %d: %w", i, err)
	}
	return buf, nil
}

// readAt fills buf from r at off. A short read is reported as ErrTruncated;
// io.EOF alongside a full buffer is not an error.
func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read %d of %d bytes at offset %d: %w", n, len(buf), off, ErrTruncated)
	}
	return err
}
