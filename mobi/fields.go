package mobi

import (
	"encoding/binary"
	"fmt"
)

// fields reads fixed-offset integers out of a decoded structure. The byte
// order is carried by the value so every codec states it explicitly.
// The first out-of-bounds access is remembered in err and every later
// read returns zero.
type fields struct {
	buf   []byte
	order binary.ByteOrder
	what  string
	err   error
}

func newFields(buf []byte, order binary.ByteOrder, what string) *fields {
	return &fields{buf: buf, order: order, what: what}
}

func (f *fields) check(off, n int) bool {
	if f.err != nil {
		return false
	}
	if off < 0 || off+n > len(f.buf) {
		f.err = fmt.Errorf("mobi: %s: need %d bytes at offset %d, have %d: %w",
			f.what, n, off, len(f.buf), ErrTruncated)
		return false
	}
	return true
}

func (f *fields) u16(off int) uint16 {
	if !f.check(off, 2) {
		return 0
	}
	return f.order.Uint16(f.buf[off:])
}

func (f *fields) u32(off int) uint32 {
	if !f.check(off, 4) {
		return 0
	}
	return f.order.Uint32(f.buf[off:])
}

func (f *fields) bytes(off, n int) []byte {
	if !f.check(off, n) {
		return nil
	}
	return append([]byte(nil), f.buf[off:off+n]...)
}

// putFields is the write-side counterpart of fields.
type putFields struct {
	buf   []byte
	order binary.ByteOrder
}

func (p putFields) u16(off int, v uint16)   { p.order.PutUint16(p.buf[off:], v) }
func (p putFields) u32(off int, v uint32)   { p.order.PutUint32(p.buf[off:], v) }
func (p putFields) bytes(off int, b []byte) { copy(p.buf[off:], b) }
