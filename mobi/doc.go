// Package mobi reads and rewrites MOBI, AZW and AZW3 containers.
//
// A container is a Palm database: a record table followed by records.
// Record 0 carries the compression header, the format header, an optional
// keyed metadata block (EXTH) and the full title. The records after it hold
// compressed text, Huffman tables, images and structural markers.
//
// Basic usage:
//
//	book, err := mobi.Open("book.azw3")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer book.Close()
//
//	md := book.Metadata()
//	text, err := book.Text()
//
// Metadata changes are written with SetMetadata followed by WriteFile,
// which replaces the target through a temporary file. Only record 0 is
// rebuilt; every other record is copied unchanged with its offset shifted.
//
// Books with a DRM section or an encrypted compression header are rejected
// with an error matching both ErrUnsupported and ErrEncrypted.
package mobi
