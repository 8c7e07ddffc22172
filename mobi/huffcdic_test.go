package mobi

import (
	"encoding/binary"
	"errors"
	"testing"
)

// byteCodeHUFF builds a HUFF record where every code is eight bits long and
// terminal. With a stored boundary of 255 for every entry, code byte c
// selects phrase 255-c.
func byteCodeHUFF() []byte {
	rec := make([]byte, huffHeaderSize+huffTableEntries*4+64*4)
	copy(rec, huffMagic)
	binary.BigEndian.PutUint32(rec[4:], huffHeaderSize)
	binary.BigEndian.PutUint32(rec[8:], huffHeaderSize)
	binary.BigEndian.PutUint32(rec[12:], huffHeaderSize+huffTableEntries*4)
	for i := 0; i < huffTableEntries; i++ {
		binary.BigEndian.PutUint32(rec[huffHeaderSize+4*i:], 255<<8|0x80|8)
	}
	return rec
}

// cdicRecord builds a CDIC record holding phrases. resolved[i] sets the
// high bit of phrase i's length.
func cdicRecord(total int, phrases []string, resolved []bool) []byte {
	rec := make([]byte, cdicHeaderSize)
	copy(rec, cdicMagic)
	binary.BigEndian.PutUint32(rec[4:], cdicHeaderSize)
	binary.BigEndian.PutUint32(rec[8:], uint32(total))
	binary.BigEndian.PutUint32(rec[12:], 8)

	offsets := make([]byte, 2*len(phrases))
	var data []byte
	for i, p := range phrases {
		binary.BigEndian.PutUint16(offsets[2*i:], uint16(len(offsets)+len(data)))
		size := uint16(len(p))
		if resolved[i] {
			size |= 0x8000
		}
		data = binary.BigEndian.AppendUint16(data, size)
		data = append(data, p...)
	}
	rec = append(rec, offsets...)
	return append(rec, data...)
}

func testHuffCDIC(t *testing.T) *HuffCDIC {
	t.Helper()
	phrases := []string{"Hello ", "World", "\xFF\xFF"}
	h, err := NewHuffCDIC(byteCodeHUFF(), cdicRecord(len(phrases), phrases, []bool{true, true, false}))
	if err != nil {
		t.Fatalf("NewHuffCDIC() error = %v", err)
	}
	return h
}

func TestHuffCDIC_Decompress(t *testing.T) {
	h := testHuffCDIC(t)
	if h.Phrases() != 3 {
		t.Fatalf("Phrases() = %d, want 3", h.Phrases())
	}

	got, err := h.Decompress([]byte{0xFF, 0xFE, 0xFF})
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if string(got) != "Hello WorldHello " {
		t.Errorf("Decompress() = %q, want %q", got, "Hello WorldHello ")
	}
}

func TestHuffCDIC_TerminalPhraseIsNotExpanded(t *testing.T) {
	h := testHuffCDIC(t)

	for i := 1; i <= 2; i++ {
		got, err := h.phrase(0)
		if err != nil {
			t.Fatalf("lookup %d: error = %v", i, err)
		}
		if string(got) != "Hello " {
			t.Errorf("lookup %d = %q, want %q", i, got, "Hello ")
		}
	}
	if h.lookups != 2 {
		t.Errorf("lookups = %d, want 2", h.lookups)
	}
	if h.expansions != 0 {
		t.Errorf("expansions = %d, want 0", h.expansions)
	}
}

func TestHuffCDIC_PhraseExpandedOnce(t *testing.T) {
	h := testHuffCDIC(t)

	// Code 0xFD selects phrase 2, which itself decodes to phrase 0 twice.
	got, err := h.Decompress([]byte{0xFD, 0xFD})
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	want := "Hello Hello Hello Hello "
	if string(got) != want {
		t.Errorf("Decompress() = %q, want %q", got, want)
	}
	if h.expansions != 1 {
		t.Errorf("expansions = %d, want 1", h.expansions)
	}
	if !h.phrases[2].resolved || string(h.phrases[2].data) != "Hello Hello " {
		t.Errorf("phrase 2 not memoized: %+v", h.phrases[2])
	}
}

func TestHuffCDIC_InvalidPhrase(t *testing.T) {
	h := testHuffCDIC(t)

	// Code 0x00 selects phrase 255.
	if _, err := h.Decompress([]byte{0x00}); !errors.Is(err, ErrInvalidPhrase) {
		t.Errorf("out of range error = %v, want ErrInvalidPhrase", err)
	}

	// A phrase that decodes to itself.
	self, err := NewHuffCDIC(byteCodeHUFF(), cdicRecord(1, []string{"\xFF"}, []bool{false}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := self.Decompress([]byte{0xFF}); !errors.Is(err, ErrInvalidPhrase) {
		t.Errorf("self reference error = %v, want ErrInvalidPhrase", err)
	}
}

func TestHuffCDIC_NonTerminalWidening(t *testing.T) {
	// Every table entry is non-terminal with a starting length of 9. The
	// only 9-bit code is 111111111; everything below it widens to 10 bits.
	rec := byteCodeHUFF()
	for i := 0; i < huffTableEntries; i++ {
		binary.BigEndian.PutUint32(rec[huffHeaderSize+4*i:], 9)
	}
	rangeOff := huffHeaderSize + huffTableEntries*4
	binary.BigEndian.PutUint32(rec[rangeOff+8*8:], 511)
	binary.BigEndian.PutUint32(rec[rangeOff+8*8+4:], 511)
	binary.BigEndian.PutUint32(rec[rangeOff+8*9:], 0)
	binary.BigEndian.PutUint32(rec[rangeOff+8*9+4:], 1021)

	const total = 1022
	phrases := make([]string, total)
	resolved := make([]bool, total)
	for i := range phrases {
		phrases[i] = string(rune('a' + i%26))
		resolved[i] = true
	}
	dict := cdicRecord(total, phrases, resolved)
	binary.BigEndian.PutUint32(dict[12:], 10)

	h, err := NewHuffCDIC(rec, dict)
	if err != nil {
		t.Fatalf("NewHuffCDIC() error = %v", err)
	}

	// 111111111 selects phrase 0; the following ten zero bits widen to
	// length 10 and select phrase 1021.
	got, err := h.Decompress([]byte{0xFF, 0x80, 0x00})
	if err != nil {
		t.Fatalf("Decompress() error = %v", err)
	}
	if string(got) != "ah" {
		t.Errorf("Decompress() = %q, want %q", got, "ah")
	}
}

func TestNewHuffCDIC_RejectsBadTables(t *testing.T) {
	bad := byteCodeHUFF()
	copy(bad, "HUFX")
	if _, err := NewHuffCDIC(bad); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("bad magic error = %v, want ErrMalformedHeader", err)
	}

	zeroLen := byteCodeHUFF()
	binary.BigEndian.PutUint32(zeroLen[huffHeaderSize:], 0x80)
	if _, err := NewHuffCDIC(zeroLen); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("zero code length error = %v, want ErrMalformedHeader", err)
	}

	shortNonTerminal := byteCodeHUFF()
	binary.BigEndian.PutUint32(shortNonTerminal[huffHeaderSize:], 5)
	if _, err := NewHuffCDIC(shortNonTerminal); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("short non-terminal error = %v, want ErrMalformedHeader", err)
	}

	badCDIC := cdicRecord(1, []string{"x"}, []bool{true})
	copy(badCDIC, "CDIX")
	if _, err := NewHuffCDIC(byteCodeHUFF(), badCDIC); !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("bad dictionary magic error = %v, want ErrMalformedHeader", err)
	}
}
