package mobi

import (
	"encoding/binary"
	"fmt"
)

const (
	huffMagic      = "HUFF"
	huffHeaderSize = 0x18
	cdicMagic      = "CDIC"
	cdicHeaderSize = 0x10

	huffTableEntries = 256
	huffMaxCodeLen   = 32
)

// huffEntry is one slot of the 256-entry lookup table indexed by the top
// byte of the code window.
type huffEntry struct {
	codeLen  int
	terminal bool
	maxCode  uint64
}

// phrase is a dictionary slot. Unresolved phrases hold compressed bytes
// until first use, when they are replaced by their expansion. busy marks a
// phrase whose expansion is in progress.
type phrase struct {
	data     []byte
	resolved bool
	busy     bool
}

// HuffCDIC decodes records compressed with a Huffman code over a phrase
// dictionary. Phrases are expanded lazily and memoized in place, so a
// HuffCDIC value is bound to one book and is not safe for concurrent use.
type HuffCDIC struct {
	table   [huffTableEntries]huffEntry
	minCode [huffMaxCodeLen + 1]uint64
	maxCode [huffMaxCodeLen + 1]uint64
	phrases []phrase

	// lookups counts phrase lookups; expansions counts phrases that had
	// to be decompressed. Both are for diagnostics and tests.
	lookups    int
	expansions int
}

// NewHuffCDIC builds a decoder from a HUFF record and its CDIC records.
func NewHuffCDIC(huff []byte, cdics ...[]byte) (*HuffCDIC, error) {
	h := &HuffCDIC{}
	if err := h.loadHuff(huff); err != nil {
		return nil, err
	}
	for i, c := range cdics {
		if err := h.loadCDIC(c); err != nil {
			return nil, fmt.Errorf("mobi: dictionary record %d: %w", i, err)
		}
	}
	return h, nil
}

func (h *HuffCDIC) loadHuff(rec []byte) error {
	f := newFields(rec, binary.BigEndian, "huffman table")
	if len(rec) < huffHeaderSize || string(rec[:4]) != huffMagic {
		return fmt.Errorf("mobi: huffman record magic: %w", ErrMalformedHeader)
	}
	if f.u32(4) != huffHeaderSize {
		return fmt.Errorf("mobi: huffman header length %d: %w", f.u32(4), ErrMalformedHeader)
	}
	tableOff := int(f.u32(8))
	rangeOff := int(f.u32(12))

	for i := range h.table {
		v := f.u32(tableOff + 4*i)
		e := huffEntry{
			codeLen:  int(v & 0x1F),
			terminal: v&0x80 != 0,
		}
		if f.err != nil {
			return f.err
		}
		if e.codeLen == 0 || (e.codeLen <= 8 && !e.terminal) {
			return fmt.Errorf("mobi: huffman table entry %d (length %d, terminal %t): %w",
				i, e.codeLen, e.terminal, ErrMalformedHeader)
		}
		e.maxCode = ((uint64(v>>8) + 1) << (32 - e.codeLen)) - 1
		h.table[i] = e
	}

	// Length 0 never matches; lengths 1..32 come from 32 (min, max) pairs.
	h.minCode[0] = 0
	h.maxCode[0] = 1<<32 - 1
	for n := 1; n <= huffMaxCodeLen; n++ {
		lo := f.u32(rangeOff + 8*(n-1))
		hi := f.u32(rangeOff + 8*(n-1) + 4)
		h.minCode[n] = uint64(lo) << (32 - n)
		h.maxCode[n] = ((uint64(hi) + 1) << (32 - n)) - 1
	}
	return f.err
}

func (h *HuffCDIC) loadCDIC(rec []byte) error {
	f := newFields(rec, binary.BigEndian, "phrase dictionary")
	if len(rec) < cdicHeaderSize || string(rec[:4]) != cdicMagic {
		return fmt.Errorf("mobi: dictionary magic: %w", ErrMalformedHeader)
	}
	if f.u32(4) != cdicHeaderSize {
		return fmt.Errorf("mobi: dictionary header length %d: %w", f.u32(4), ErrMalformedHeader)
	}
	total := int(f.u32(8))
	bitCount := f.u32(12)
	if bitCount > 16 {
		return fmt.Errorf("mobi: dictionary index width %d: %w", bitCount, ErrMalformedHeader)
	}

	n := min(1<<bitCount, total-len(h.phrases))
	for i := 0; i < n; i++ {
		off := int(f.u16(cdicHeaderSize + 2*i))
		size := f.u16(cdicHeaderSize + off)
		data := f.bytes(cdicHeaderSize+off+2, int(size&0x7FFF))
		if f.err != nil {
			return f.err
		}
		h.phrases = append(h.phrases, phrase{data: data, resolved: size&0x8000 != 0})
	}
	return nil
}

// Phrases returns the number of dictionary phrases loaded.
func (h *HuffCDIC) Phrases() int {
	return len(h.phrases)
}

// Decompress decodes one record.
func (h *HuffCDIC) Decompress(record []byte) ([]byte, error) {
	return h.unpack(record)
}

// unpack walks a 64-bit window over data, decoding codes until the
// consumed bit count reaches the bit length of data.
func (h *HuffCDIC) unpack(data []byte) ([]byte, error) {
	bitsLeft := len(data) * 8
	buf := make([]byte, len(data)+16)
	copy(buf, data)

	pos := 0
	x := binary.BigEndian.Uint64(buf)
	n := 32
	var out []byte
	for {
		if n <= 0 {
			pos += 4
			x = binary.BigEndian.Uint64(buf[pos:])
			n += 32
		}
		code := (x >> uint(n)) & 0xFFFFFFFF

		e := h.table[code>>24]
		codeLen, maxCode := e.codeLen, e.maxCode
		if !e.terminal {
			for codeLen <= huffMaxCodeLen && code < h.minCode[codeLen] {
				codeLen++
			}
			if codeLen > huffMaxCodeLen {
				return nil, fmt.Errorf("mobi: code %#08x at bit %d: %w", code, len(data)*8-bitsLeft, ErrInvalidHuffmanCode)
			}
			maxCode = h.maxCode[codeLen]
		}

		n -= codeLen
		bitsLeft -= codeLen
		if bitsLeft < 0 {
			break
		}
		if maxCode < code {
			return nil, fmt.Errorf("mobi: code %#08x above range of length %d: %w", code, codeLen, ErrInvalidHuffmanCode)
		}

		p, err := h.phrase(int((maxCode - code) >> (32 - codeLen)))
		if err != nil {
			return nil, err
		}
		out = append(out, p...)
	}
	return out, nil
}

// phrase returns the expansion of dictionary slot i, decompressing and
// memoizing it on first use.
func (h *HuffCDIC) phrase(i int) ([]byte, error) {
	h.lookups++
	if i < 0 || i >= len(h.phrases) {
		return nil, fmt.Errorf("mobi: phrase %d of %d: %w", i, len(h.phrases), ErrInvalidPhrase)
	}
	p := &h.phrases[i]
	if p.resolved {
		return p.data, nil
	}
	if p.busy {
		return nil, fmt.Errorf("mobi: phrase %d refers to itself: %w", i, ErrInvalidPhrase)
	}

	p.busy = true
	data, err := h.unpack(p.data)
	p.busy = false
	if err != nil {
		return nil, fmt.Errorf("mobi: expand phrase %d: %w", i, err)
	}
	p.data = data
	p.resolved = true
	h.expansions++
	return data, nil
}
