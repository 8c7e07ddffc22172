package epub

import (
	"archive/zip"
	"fmt"
	"io"
)

const mimetype = "application/epub+zip"

// Book is an opened ePub archive. Use Open or NewReader to create one.
//
// A Book is not safe for concurrent use by multiple goroutines.
type Book struct {
	arc    *archive
	closer io.Closer

	opfPath string
	ncxPath string
	pkg     *opfPackage

	manifest     []ManifestItem
	manifestByID map[string]int
	spine        []SpineItem

	metadata  Metadata
	toc       []TOCItem
	landmarks []TOCItem
	warnings  []string
}

// Open opens the ePub at path. The caller must call Close when done.
func Open(path string) (*Book, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %w", path, err)
	}
	b, err := newBook(&zrc.Reader, zrc)
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return b, nil
}

// NewReader reads an ePub from r. The caller is responsible for the
// lifetime of r.
func NewReader(r io.ReaderAt, size int64) (*Book, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %w", err)
	}
	return newBook(zr, nil)
}

func newBook(zr *zip.Reader, closer io.Closer) (*Book, error) {
	b := &Book{arc: newArchive(zr), closer: closer}
	b.checkMimetype()

	opfPath, err := locatePackage(b.arc)
	if err != nil {
		return nil, err
	}
	b.opfPath = opfPath

	obfuscated, err := checkDRM(b.arc)
	if err != nil {
		return nil, err
	}
	if obfuscated {
		b.warn("embedded fonts are obfuscated")
	}

	data, err := b.arc.read(opfPath)
	if err != nil {
		return nil, fmt.Errorf("epub: package document: %w: %w", err, ErrInvalidEPub)
	}
	if b.pkg, err = parsePackage(data); err != nil {
		return nil, err
	}

	b.manifest = buildManifest(b.pkg.Manifest, opfPath)
	b.manifestByID = make(map[string]int, len(b.manifest))
	for i, m := range b.manifest {
		if _, dup := b.manifestByID[m.ID]; !dup {
			b.manifestByID[m.ID] = i
		}
	}
	b.spine = buildSpine(b.pkg.Spine, b.manifestByID, b.manifest, b.warn)
	b.metadata = extractMetadata(b.pkg)
	b.loadNavigation()
	return b, nil
}

// checkMimetype records a warning unless the first entry is an uncorrupted
// mimetype file.
func (b *Book) checkMimetype() {
	files := b.arc.zr.File
	if len(files) == 0 || files[0].Name != "mimetype" {
		b.warn("first entry is not mimetype")
		return
	}
	data, err := readEntry(files[0], 64)
	if err != nil {
		b.warn(fmt.Sprintf("cannot read mimetype: %v", err))
		return
	}
	if string(data) != mimetype {
		b.warn(fmt.Sprintf("unexpected mimetype %q", data))
	}
}

func (b *Book) warn(msg string) {
	b.warnings = append(b.warnings, msg)
}

// Close releases the file opened by Open. Close is idempotent.
func (b *Book) Close() error {
	if b.closer != nil {
		err := b.closer.Close()
		b.closer = nil
		return err
	}
	return nil
}

// Metadata returns the package metadata.
func (b *Book) Metadata() Metadata {
	return copyMetadata(b.metadata)
}

// Warnings returns the non-fatal problems met while reading.
func (b *Book) Warnings() []string {
	return append([]string(nil), b.warnings...)
}

// TOC returns the table of contents, or nil when the book has no
// navigation.
func (b *Book) TOC() []TOCItem {
	return copyTOC(b.toc)
}

// Landmarks returns the landmarks nav of an ePub 3 navigation document, or
// nil when there is none.
func (b *Book) Landmarks() []TOCItem {
	return copyTOC(b.landmarks)
}

// HasNavigation reports whether an NCX or navigation document was read.
func (b *Book) HasNavigation() bool {
	return b.toc != nil
}

// Manifest returns every resource in declaration order.
func (b *Book) Manifest() []ManifestItem {
	out := make([]ManifestItem, len(b.manifest))
	for i, m := range b.manifest {
		out[i] = m
		out[i].Properties = append([]string(nil), m.Properties...)
	}
	return out
}

// Spine returns the reading order.
func (b *Book) Spine() []SpineItem {
	return append([]SpineItem(nil), b.spine...)
}

// ReadFile returns the contents of an archive entry. Lookup falls back to
// a case-insensitive match.
func (b *Book) ReadFile(name string) ([]byte, error) {
	return b.arc.read(name)
}
