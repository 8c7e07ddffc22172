package mobi

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// decodeText converts bytes in the book's declared encoding to UTF-8.
func decodeText(enc uint32, b []byte) (string, error) {
	if enc != EncodingCP1252 {
		return string(b), nil
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("mobi: decode cp1252 text: %w", err)
	}
	return string(out), nil
}

// encodeText converts UTF-8 text to the book's declared encoding. Runes
// that cp1252 cannot represent become '?'.
func encodeText(enc uint32, s string) []byte {
	if enc != EncodingCP1252 {
		return []byte(s)
	}
	b := make([]byte, 0, len(s))
	for _, r := range s {
		if c, ok := charmap.Windows1252.EncodeRune(r); ok {
			b = append(b, c)
		} else {
			b = append(b, '?')
		}
	}
	return b
}
