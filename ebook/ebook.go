// Package ebook opens ePub and MOBI family books behind one type so that
// catalogs, the CLI and the library scanner never deal with either
// container directly.
package ebook

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sawyersteven/KindleManager-sub001/epub"
	"github.com/sawyersteven/KindleManager-sub001/internal/logging"
	"github.com/sawyersteven/KindleManager-sub001/mobi"
)

// Format names a container format.
type Format string

const (
	FormatEPub Format = "epub"
	FormatMOBI Format = "mobi"
	FormatAZW3 Format = "azw3"
)

// Extensions lists the file extensions Open accepts.
var Extensions = []string{".epub", ".mobi", ".azw", ".azw3", ".prc"}

// Book is an open book. Edit Metadata and call WriteMetadata to store it.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	Metadata BookMetadata

	// read is Metadata as it was read from the file.
	read BookMetadata

	epub *epub.Book
	mobi *mobi.Book
	log  zerolog.Logger
}

// Open opens the book at path, picking the format from the extension.
func Open(path string) (*Book, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with the logger carried by ctx.
func OpenContext(ctx context.Context, path string) (*Book, error) {
	b := &Book{log: logging.FromContext(ctx).With().Str("book", path).Logger()}
	if err := b.open(path); err != nil {
		return nil, err
	}
	b.log.Debug().Str("format", string(b.Metadata.Format)).Str("title", b.Metadata.Title).Msg("opened")
	for _, w := range b.warnings() {
		b.log.Warn().Str("warning", w).Msg("book has structural problems")
	}
	return b, nil
}

func (b *Book) open(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".epub":
		eb, err := epub.Open(path)
		if err != nil {
			return err
		}
		b.epub = eb
		b.read = fromEPub(eb.Metadata())
		b.read.Format = FormatEPub
	case ".mobi", ".azw", ".azw3", ".prc":
		mb, err := mobi.Open(path)
		if err != nil {
			return err
		}
		b.mobi = mb
		b.read = fromMOBI(mb.Metadata())
		b.read.Format = FormatMOBI
		if mb.Header().Variant == mobi.VariantKF8 {
			b.read.Format = FormatAZW3
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	b.read.Path = path
	b.Metadata = b.read.clone()
	return nil
}

// Warnings returns the recoverable problems found while opening the book.
func (b *Book) Warnings() []string {
	return b.warnings()
}

func (b *Book) warnings() []string {
	switch {
	case b.epub != nil:
		return b.epub.Warnings()
	case b.mobi != nil:
		return b.mobi.Warnings()
	}
	return nil
}

// Close releases the file handle. Close is idempotent.
func (b *Book) Close() error {
	var err error
	switch {
	case b.epub != nil:
		err = b.epub.Close()
	case b.mobi != nil:
		err = b.mobi.Close()
	}
	b.epub, b.mobi = nil, nil
	return err
}

func (b *Book) closed() bool {
	return b.epub == nil && b.mobi == nil
}

// IsBook reports whether path has one of the supported extensions.
func IsBook(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
