package ebook

import "fmt"

// WriteMetadata stores b.Metadata in the file b was opened from. The file
// is replaced atomically; on failure it is left untouched. The book is
// reopened afterwards so that b.Metadata reflects what the file now holds.
func WriteMetadata(b *Book) error {
	if b.closed() {
		return ErrClosed
	}
	path := b.read.Path

	var err error
	switch {
	case b.epub != nil:
		err = b.epub.WriteMetadata(path, b.Metadata.toEPub(b.epub.Metadata(), b.read))
	case b.mobi != nil:
		if b.Metadata.Series != "" {
			b.log.Debug().Str("series", b.Metadata.Series).Msg("series dropped, MOBI has no series field")
		}
		b.mobi.SetMetadata(b.Metadata.toMOBI(b.mobi.Metadata()))
		err = b.mobi.WriteFile(path)
	}
	if err != nil {
		b.log.Error().Err(err).Msg("metadata write failed")
		return err
	}
	b.log.Info().Str("title", b.Metadata.Title).Msg("metadata written")

	if err := b.Close(); err != nil {
		return err
	}
	if err := b.open(path); err != nil {
		return fmt.Errorf("ebook: reopen after write: %w", err)
	}
	return nil
}
