package mobi

import "errors"

// Sentinel errors returned by the mobi package.
var (
	// ErrMalformedHeader indicates a structure carries a bad magic or
	// identifier, or an internally inconsistent field.
	ErrMalformedHeader = errors.New("mobi: malformed header")

	// ErrTruncated indicates the input ended before a structure was complete.
	ErrTruncated = errors.New("mobi: truncated input")

	// ErrUnsupported indicates an unexpected sub-type, compression mode or
	// encryption mode.
	ErrUnsupported = errors.New("mobi: unsupported variant")

	// ErrEncrypted indicates the book is DRM protected or encrypted. It is
	// always returned wrapped together with ErrUnsupported.
	ErrEncrypted = errors.New("mobi: book is encrypted")

	// ErrRecordOutOfRange indicates a record index outside the record table.
	ErrRecordOutOfRange = errors.New("mobi: record index out of range")

	// ErrInvalidHuffmanCode indicates a code that falls outside every
	// code-length range of the Huffman table.
	ErrInvalidHuffmanCode = errors.New("mobi: invalid huffman code")

	// ErrInvalidPhrase indicates a phrase index outside the dictionary or a
	// phrase that refers back to itself while being resolved.
	ErrInvalidPhrase = errors.New("mobi: invalid dictionary phrase")

	// ErrInvalidBackReference indicates an LZ77 back-reference pointing
	// before the start of the output.
	ErrInvalidBackReference = errors.New("mobi: invalid back-reference")
)
