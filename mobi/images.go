package mobi

import (
	"bytes"
	"fmt"
)

// imageSignatures are the leading bytes of the image formats embedded in
// books.
var imageSignatures = [][]byte{
	{0xFF, 0xD8, 0xFF},    // JPEG
	[]byte("GIF87a"),      // GIF
	[]byte("GIF89a"),      // GIF
	{0x89, 'P', 'N', 'G'}, // PNG
	[]byte("BM"),          // BMP
}

// endOfImages are record markers that follow the image section.
var endOfImages = [][]byte{
	[]byte("FLIS"),
	[]byte("FCIS"),
	[]byte("SRCS"),
	[]byte("BOUNDARY"),
	{0xE9, 0x8E, 0x0D, 0x0A}, // EOF record
}

// IsImage reports whether rec starts with a known image signature.
func IsImage(rec []byte) bool {
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(rec, sig) {
			return true
		}
	}
	return false
}

func isEndOfImages(rec []byte) bool {
	for _, m := range endOfImages {
		if bytes.HasPrefix(rec, m) {
			return true
		}
	}
	return false
}

// Images returns the raw bytes of every image record in record order,
// starting at the first image index and stopping at the first structural
// record that follows the image section. Non-image records in between
// (fonts, resource maps) are skipped.
func (b *Book) Images() ([][]byte, error) {
	first := b.header.FirstImageIndex
	if first == noIndex || int(first) >= len(b.pdb.Offsets) {
		return nil, nil
	}

	var images [][]byte
	for i := int(first); i < len(b.pdb.Offsets); i++ {
		rec, err := b.Record(i)
		if err != nil {
			return nil, fmt.Errorf("mobi: image record %d: %w", i, err)
		}
		if isEndOfImages(rec) {
			break
		}
		if IsImage(rec) {
			images = append(images, rec)
		}
	}
	return images, nil
}

// Cover returns the image record named by the cover offset record, or
// ErrRecordOutOfRange when the book declares no usable cover.
func (b *Book) Cover() ([]byte, error) {
	off, ok := b.exth.GetUint32(EXTHCoverOffset)
	if !ok || b.header.FirstImageIndex == noIndex {
		return nil, fmt.Errorf("mobi: no cover offset: %w", ErrRecordOutOfRange)
	}
	rec, err := b.Record(int(b.header.FirstImageIndex) + int(off))
	if err != nil {
		return nil, err
	}
	if !IsImage(rec) {
		return nil, fmt.Errorf("mobi: cover record is not an image: %w", ErrMalformedHeader)
	}
	return rec, nil
}
