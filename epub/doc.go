// Package epub reads ePub 2 and ePub 3 archives and rewrites their
// metadata.
//
// A [Book] exposes the package metadata, manifest, spine and table of
// contents. DRM-protected archives are rejected with [ErrDRMProtected];
// recoverable structural problems are collected by [Book.Warnings].
//
//	book, err := epub.Open("book.epub")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer book.Close()
//	fmt.Println(book.Metadata().Title)
//
// # Assembly
//
// [Book.Assemble] folds the spine into one linear document. Spine documents
// that no navigation entry points at continue the preceding chapter.
// Navigation targets are renumbered with ten-digit ids in play order and
// every internal link follows its target. Images are renamed with five-digit
// names in manifest order and the stylesheets are concatenated. A book
// without an NCX or navigation document fails with [ErrMissingNavigation].
//
//	a, err := book.Assemble()
//	if err != nil {
//	    return err
//	}
//	return a.Render(os.Stdout)
//
// # Writing metadata
//
// [Book.WriteMetadata] writes a copy of the archive with a new metadata
// block. Only the package document and the NCX are rewritten; every other
// entry is copied without recompression.
package epub
