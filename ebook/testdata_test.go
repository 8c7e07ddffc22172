package ebook

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sawyersteven/KindleManager-sub001/mobi"
)

var (
	jpegData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'c', 'o', 'v', 'e', 'r'}
	pngData  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 'x'}
)

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>Two Authors</dc:title>
    <dc:creator opf:file-as="A, Ann">Ann A</dc:creator>
    <dc:creator>Bob B</dc:creator>
    <dc:identifier id="bookid">urn:uuid:0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0</dc:identifier>
    <dc:identifier opf:scheme="ISBN">9780306406157</dc:identifier>
    <dc:language>en</dc:language>
    <dc:publisher>Pub House</dc:publisher>
    <dc:date>2001-02-03</dc:date>
    <dc:subject>Fiction</dc:subject>
    <dc:rights>All rights reserved</dc:rights>
    <dc:description>About the book.</dc:description>
    <meta name="calibre:series" content="Saga"/>
    <meta name="calibre:series_index" content="3"/>
    <meta name="cover" content="img"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="c1" href="c1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="c2.xhtml" media-type="application/xhtml+xml"/>
    <item id="img" href="images/cover.jpg" media-type="image/jpeg"/>
    <item id="pic" href="images/pic.png" media-type="image/png"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="c1"/>
    <itemref idref="c2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <docTitle><text>Two Authors</text></docTitle>
  <navMap>
    <navPoint playOrder="1"><navLabel><text>One</text></navLabel><content src="c1.xhtml"/></navPoint>
    <navPoint playOrder="2"><navLabel><text>Two</text></navLabel><content src="c2.xhtml"/></navPoint>
  </navMap>
</ncx>`

// writeTestEPub writes a two-chapter book with a cover and returns its path.
func writeTestEPub(t *testing.T) string {
	t.Helper()
	files := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?><container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`,
		"OEBPS/content.opf":      testOPF,
		"OEBPS/toc.ncx":          testNCX,
		"OEBPS/c1.xhtml":         `<html><head><title>1</title></head><body><h1>One</h1><p>First <b>bold</b> text.</p><img src="images/cover.jpg"/></body></html>`,
		"OEBPS/c2.xhtml":         `<html><head><title>2</title></head><body><h1>Two</h1><p>Second.</p><img src="images/pic.png"/></body></html>`,
		"OEBPS/images/cover.jpg": string(jpegData),
		"OEBPS/images/pic.png":   string(pngData),
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("application/epub+zip"))
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(files[name]))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return writeTemp(t, "book.epub", buf.Bytes())
}

const testMOBIText = `<html><head></head><body><p>Hello</p><mbp:pagebreak/><p>World</p></body></html>`

// writeTestMOBI writes an uncompressed container with one text record, a
// cover image and the usual keyed metadata.
func writeTestMOBI(t *testing.T, name string, variant mobi.Variant) string {
	t.Helper()

	exth := mobi.NewEXTH()
	exth.SetString(mobi.EXTHAuthor, "Jane Austen")
	exth.SetString(mobi.EXTHPublisher, "T. Egerton")
	exth.SetString(mobi.EXTHISBN, "9780141439518")
	exth.SetString(mobi.EXTHSubject, "Fiction; Romance")
	exth.SetString(mobi.EXTHPublishDate, "1813-01-28")
	exth.SetString(mobi.EXTHLanguage, "en")
	exth.Set(mobi.EXTHCoverOffset, []byte{0, 0, 0, 0})
	exthBytes := exth.Dump()

	const title = "Pride and Prejudice"
	records := [][]byte{nil, []byte(testMOBIText), jpegData, pngData, []byte("FLIS\x00\x00\x00\x08\x00\x41"), {0xE9, 0x8E, 0x0D, 0x0A}}

	hdr := mobi.NewFormatHeader(variant)
	hdr.Content = mobi.ContentBounds{First: 1, Last: 1}
	hdr.FirstImageIndex = 2
	hdr.SetEXTH(true)
	hdr.TitleOffset = 16 + hdr.Length + uint32(len(exthBytes))
	hdr.TitleLength = uint32(len(title))

	ch := mobi.CompressionHeader{
		Compression: mobi.CompressionNone,
		TextLength:  uint32(len(testMOBIText)),
		RecordCount: 1,
		RecordSize:  mobi.DefaultRecordSize,
	}
	var rec0 bytes.Buffer
	rec0.Write(ch.Dump())
	rec0.Write(hdr.Dump())
	rec0.Write(exthBytes)
	rec0.WriteString(title)
	rec0.Write([]byte{0, 0, 0, 0})
	records[0] = rec0.Bytes()

	pdb := &mobi.PDBHeader{Name: "test", Offsets: make([]uint32, len(records))}
	copy(pdb.Type[:], "BOOK")
	copy(pdb.Creator[:], "MOBI")
	off := uint32(pdb.Size())
	for i, r := range records {
		pdb.Offsets[i] = off
		off += uint32(len(r))
	}

	var out bytes.Buffer
	out.Write(pdb.Dump())
	for _, r := range records {
		out.Write(r)
	}
	return writeTemp(t, name, out.Bytes())
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(fp, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return fp
}
