package mobi

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
)

// Variant selects the structural layout of the format header.
type Variant int

const (
	// VariantMOBI6 is the classic layout carrying a first/last content
	// record pair.
	VariantMOBI6 Variant = iota

	// VariantKF8 is the KF8 layout carrying the FDST (flow table) record
	// offset and flow count in the same byte range.
	VariantKF8
)

// String returns the variant name.
func (v Variant) String() string {
	switch v {
	case VariantMOBI6:
		return "mobi6"
	case VariantKF8:
		return "kf8"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// DetectVariant picks the header layout from the declared file version.
func DetectVariant(fileVersion uint32) Variant {
	if fileVersion >= 8 {
		return VariantKF8
	}
	return VariantMOBI6
}

// Text encodings declared by the format header.
const (
	EncodingCP1252 uint32 = 1252
	EncodingUTF8   uint32 = 65001
)

const (
	formatMagic = "MOBI"

	// headerBase is the distance from the start of record 0 to the format
	// header: the compression header occupies the first 16 bytes. Stored
	// title offsets are relative to record 0, so they are corrected by it.
	headerBase = compressionHeaderSize

	// Offsets below are relative to the format header magic.
	offLength         = 4
	offType           = 8
	offEncoding       = 12
	offUniqueID       = 16
	offFileVersion    = 20
	offFirstNonBook   = 64
	offTitleOffset    = 68
	offTitleLength    = 72
	offLocale         = 76
	offFirstImage     = 92
	offHuffRecord     = 96
	offHuffCount      = 100
	offEXTHFlags      = 112
	offDRMOffset      = 152
	offDRMCount       = 156
	offVariant        = 176
	offExtraDataFlags = 224

	minHeaderLength     = offVariant + 8
	minFlagsLength      = offExtraDataFlags + 4
	defaultHeaderLength = 232
	kf8HeaderLength     = 264

	exthPresentFlag = 0x40
	noIndex         = 0xFFFFFFFF
)

// ContentBounds is the VariantMOBI6 payload: the first and last content
// record numbers.
type ContentBounds struct {
	First uint16
	Last  uint16
}

// FlowTable is the VariantKF8 payload: the FDST record offset and the number
// of flows it describes.
type FlowTable struct {
	Offset uint32
	Count  uint32
}

// TrailingFlags is the decoded extra-data bitfield describing what follows
// the compressed payload of every text record.
type TrailingFlags struct {
	// Multibyte reports a trailing multibyte-character overlap section.
	Multibyte bool

	// Entries is the number of length-prefixed trailing entries.
	Entries uint
}

// DecodeTrailingFlags splits the raw extra data flags field.
func DecodeTrailingFlags(flags uint32) TrailingFlags {
	return TrailingFlags{
		Multibyte: flags&1 != 0,
		Entries:   uint(bits.OnesCount32(flags >> 1)),
	}
}

// FormatHeader is the primary structural header of a book.
type FormatHeader struct {
	Variant Variant

	// Length is the declared header length, including the magic.
	Length      uint32
	Type        uint32
	Encoding    uint32
	UniqueID    uint32
	FileVersion uint32

	FirstNonBookIndex uint32
	Locale            uint32
	FirstImageIndex   uint32

	HuffmanRecordOffset uint32
	HuffmanRecordCount  uint32

	EXTHFlags uint32
	DRMOffset uint32
	DRMCount  uint32

	// TitleOffset is relative to the start of record 0.
	TitleOffset uint32
	TitleLength uint32
	Title       []byte

	// Content is set for VariantMOBI6, Flows for VariantKF8.
	Content ContentBounds
	Flows   FlowTable

	ExtraDataFlags uint32

	// raw keeps the header bytes the codec does not model so Dump can
	// reproduce them.
	raw []byte
}

// NewFormatHeader returns a header of the given variant with every index
// field unset and the default declared length for that variant.
func NewFormatHeader(v Variant) *FormatHeader {
	h := &FormatHeader{
		Variant:           v,
		Length:            defaultHeaderLength,
		Type:              2,
		Encoding:          EncodingUTF8,
		FileVersion:       6,
		FirstNonBookIndex: noIndex,
		FirstImageIndex:   noIndex,
		DRMOffset:         noIndex,
	}
	if v == VariantKF8 {
		h.Length = kf8HeaderLength
		h.FileVersion = 8
		h.Flows = FlowTable{Offset: noIndex}
	}
	return h
}

// HasEXTH reports whether a keyed metadata block follows the header.
func (h *FormatHeader) HasEXTH() bool {
	return h.EXTHFlags&exthPresentFlag != 0
}

// SetEXTH sets or clears the keyed-metadata-present flag.
func (h *FormatHeader) SetEXTH(present bool) {
	if present {
		h.EXTHFlags |= exthPresentFlag
	} else {
		h.EXTHFlags &^= exthPresentFlag
	}
}

// HasDRM reports whether the header declares a DRM section.
func (h *FormatHeader) HasDRM() bool {
	return h.DRMOffset != noIndex && h.DRMOffset != 0 && h.DRMCount > 0
}

// Trailing returns the decoded extra data flags.
func (h *FormatHeader) Trailing() TrailingFlags {
	return DecodeTrailingFlags(h.ExtraDataFlags)
}

// ParseFormatHeader reads the format header that starts at offset start in
// r. The layout of the variant-specific byte range is chosen by v. The
// title is read relative to start using the stored offset corrected by the
// compression header size.
func ParseFormatHeader(r io.ReaderAt, start int64, v Variant) (*FormatHeader, error) {
	return parseFormatHeader(r, start, v, binary.BigEndian)
}

func parseFormatHeader(r io.ReaderAt, start int64, v Variant, order binary.ByteOrder) (*FormatHeader, error) {
	prefix := make([]byte, 8)
	if err := readAt(r, prefix, start); err != nil {
		return nil, fmt.Errorf("mobi: read format header prefix: %w", err)
	}
	if string(prefix[:4]) != formatMagic {
		return nil, fmt.Errorf("mobi: format header magic %q: %w", prefix[:4], ErrMalformedHeader)
	}
	length := order.Uint32(prefix[offLength:])
	if length < minHeaderLength {
		return nil, fmt.Errorf("mobi: format header length %d below %d: %w", length, minHeaderLength, ErrMalformedHeader)
	}

	buf := make([]byte, length)
	if err := readAt(r, buf, start); err != nil {
		return nil, fmt.Errorf("mobi: read format header (%d bytes): %w", length, err)
	}

	f := newFields(buf, order, "format header")
	h := &FormatHeader{
		Variant:             v,
		Length:              length,
		Type:                f.u32(offType),
		Encoding:            f.u32(offEncoding),
		UniqueID:            f.u32(offUniqueID),
		FileVersion:         f.u32(offFileVersion),
		FirstNonBookIndex:   f.u32(offFirstNonBook),
		TitleOffset:         f.u32(offTitleOffset),
		TitleLength:         f.u32(offTitleLength),
		Locale:              f.u32(offLocale),
		FirstImageIndex:     f.u32(offFirstImage),
		HuffmanRecordOffset: f.u32(offHuffRecord),
		HuffmanRecordCount:  f.u32(offHuffCount),
		EXTHFlags:           f.u32(offEXTHFlags),
		DRMOffset:           f.u32(offDRMOffset),
		DRMCount:            f.u32(offDRMCount),
		raw:                 buf,
	}

	switch v {
	case VariantMOBI6:
		h.Content = ContentBounds{First: f.u16(offVariant), Last: f.u16(offVariant + 2)}
	case VariantKF8:
		h.Flows = FlowTable{Offset: f.u32(offVariant), Count: f.u32(offVariant + 4)}
	default:
		return nil, fmt.Errorf("mobi: header %v: %w", v, ErrUnsupported)
	}

	if length >= minFlagsLength {
		h.ExtraDataFlags = f.u32(offExtraDataFlags)
	}
	if f.err != nil {
		return nil, f.err
	}

	if h.TitleLength > 0 {
		pos := int64(h.TitleOffset) + start - headerBase
		h.Title = make([]byte, h.TitleLength)
		if err := readAt(r, h.Title, pos); err != nil {
			return nil, fmt.Errorf("mobi: read title (%d bytes at %d): %w", h.TitleLength, pos, err)
		}
	}
	return h, nil
}

// Dump serializes the header, zero-padded to its declared length. The title
// is not part of the header; the caller places it at TitleOffset.
func (h *FormatHeader) Dump() []byte {
	return h.dump(binary.BigEndian)
}

func (h *FormatHeader) dump(order binary.ByteOrder) []byte {
	length := h.Length
	if length < minHeaderLength {
		length = minHeaderLength
	}
	buf := make([]byte, length)
	copy(buf, h.raw)

	p := putFields{buf: buf, order: order}
	p.bytes(0, []byte(formatMagic))
	p.u32(offLength, length)
	p.u32(offType, h.Type)
	p.u32(offEncoding, h.Encoding)
	p.u32(offUniqueID, h.UniqueID)
	p.u32(offFileVersion, h.FileVersion)
	p.u32(offFirstNonBook, h.FirstNonBookIndex)
	p.u32(offTitleOffset, h.TitleOffset)
	p.u32(offTitleLength, h.TitleLength)
	p.u32(offLocale, h.Locale)
	p.u32(offFirstImage, h.FirstImageIndex)
	p.u32(offHuffRecord, h.HuffmanRecordOffset)
	p.u32(offHuffCount, h.HuffmanRecordCount)
	p.u32(offEXTHFlags, h.EXTHFlags)
	p.u32(offDRMOffset, h.DRMOffset)
	p.u32(offDRMCount, h.DRMCount)

	switch h.Variant {
	case VariantMOBI6:
		p.u16(offVariant, h.Content.First)
		p.u16(offVariant+2, h.Content.Last)
	case VariantKF8:
		p.u32(offVariant, h.Flows.Offset)
		p.u32(offVariant+4, h.Flows.Count)
	}

	if length >= minFlagsLength {
		p.u32(offExtraDataFlags, h.ExtraDataFlags)
	}
	return buf
}
