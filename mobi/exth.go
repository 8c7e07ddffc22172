package mobi

import (
	"encoding/binary"
	"fmt"
)

// Well-known keyed metadata ids.
const (
	EXTHAuthor       uint32 = 100
	EXTHPublisher    uint32 = 101
	EXTHDescription  uint32 = 103
	EXTHISBN         uint32 = 104
	EXTHSubject      uint32 = 105
	EXTHPublishDate  uint32 = 106
	EXTHContributor  uint32 = 108
	EXTHRights       uint32 = 109
	EXTHSource       uint32 = 112
	EXTHASIN         uint32 = 113
	EXTHKF8Boundary  uint32 = 121
	EXTHCoverOffset  uint32 = 201
	EXTHThumbOffset  uint32 = 202
	EXTHUpdatedTitle uint32 = 503
	EXTHLanguage     uint32 = 524
)

const (
	exthMagic      = "EXTH"
	exthHeaderSize = 12
	exthEntryHead  = 8
)

// EXTH is the keyed metadata block: an ordered dictionary of numeric ids to
// raw payloads. Ids are unique; the zero value is an empty block.
type EXTH struct {
	order  []uint32
	values map[uint32][]byte
}

// NewEXTH returns an empty keyed metadata block.
func NewEXTH() *EXTH {
	return &EXTH{values: make(map[uint32][]byte)}
}

// ParseEXTH decodes a keyed metadata block from buf. When an id occurs more
// than once only the first occurrence is kept. The declared block length is
// not trusted; the record count and record lengths drive the parse.
func ParseEXTH(buf []byte) (*EXTH, error) {
	return parseEXTH(buf, binary.BigEndian)
}

func parseEXTH(buf []byte, order binary.ByteOrder) (*EXTH, error) {
	if len(buf) < exthHeaderSize {
		return nil, fmt.Errorf("mobi: keyed metadata header: %w", ErrTruncated)
	}
	if string(buf[:4]) != exthMagic {
		return nil, fmt.Errorf("mobi: keyed metadata magic %q: %w", buf[:4], ErrMalformedHeader)
	}

	f := newFields(buf, order, "keyed metadata")
	count := f.u32(8)

	e := NewEXTH()
	pos := exthHeaderSize
	for i := uint32(0); i < count; i++ {
		id := f.u32(pos)
		size := f.u32(pos + 4)
		if f.err != nil {
			return nil, f.err
		}
		if size < exthEntryHead {
			return nil, fmt.Errorf("mobi: keyed metadata record %d length %d: %w", i, size, ErrMalformedHeader)
		}
		payload := f.bytes(pos+exthEntryHead, int(size)-exthEntryHead)
		if f.err != nil {
			return nil, f.err
		}
		if _, dup := e.values[id]; !dup {
			e.order = append(e.order, id)
			e.values[id] = payload
		}
		pos += int(size)
	}
	return e, nil
}

// Len returns the number of records.
func (e *EXTH) Len() int {
	return len(e.order)
}

// IDs returns the record ids in serialization order.
func (e *EXTH) IDs() []uint32 {
	return append([]uint32(nil), e.order...)
}

// Get returns the payload stored under id.
func (e *EXTH) Get(id uint32) ([]byte, bool) {
	v, ok := e.values[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), v...), true
}

// GetString returns the payload stored under id as text, or "" when absent.
func (e *EXTH) GetString(id uint32) string {
	return string(e.values[id])
}

// GetUint32 returns a 4-byte big-endian payload as an integer.
func (e *EXTH) GetUint32(id uint32) (uint32, bool) {
	v, ok := e.values[id]
	if !ok || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}

// Set stores value under id. A new id is appended; an existing id keeps its
// position.
func (e *EXTH) Set(id uint32, value []byte) {
	if e.values == nil {
		e.values = make(map[uint32][]byte)
	}
	if _, ok := e.values[id]; !ok {
		e.order = append(e.order, id)
	}
	e.values[id] = append([]byte(nil), value...)
}

// SetString stores s under id, or deletes id when s is empty.
func (e *EXTH) SetString(id uint32, s string) {
	if s == "" {
		e.Delete(id)
		return
	}
	e.Set(id, []byte(s))
}

// Delete removes id.
func (e *EXTH) Delete(id uint32) {
	if _, ok := e.values[id]; !ok {
		return
	}
	delete(e.values, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

// Size returns the serialized size: the 12-byte header plus every record,
// rounded up to a 4-byte boundary.
func (e *EXTH) Size() int {
	n := exthHeaderSize
	for _, id := range e.order {
		n += exthEntryHead + len(e.values[id])
	}
	return (n + 3) &^ 3
}

// Dump serializes the block in insertion order. The declared length is
// recomputed and always equals len of the result.
func (e *EXTH) Dump() []byte {
	return e.dump(binary.BigEndian)
}

func (e *EXTH) dump(order binary.ByteOrder) []byte {
	buf := make([]byte, e.Size())
	p := putFields{buf: buf, order: order}
	p.bytes(0, []byte(exthMagic))
	p.u32(4, uint32(len(buf)))
	p.u32(8, uint32(len(e.order)))

	pos := exthHeaderSize
	for _, id := range e.order {
		v := e.values[id]
		p.u32(pos, id)
		p.u32(pos+4, uint32(exthEntryHead+len(v)))
		p.bytes(pos+exthEntryHead, v)
		pos += exthEntryHead + len(v)
	}
	return buf
}
