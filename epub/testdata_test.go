package epub

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

const validContainerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// buildTestEPubBytes zips files with the mimetype entry first and the rest
// in name order.
func buildTestEPubBytes(t testing.TB, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		if name != "mimetype" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := files["mimetype"]; ok {
		names = append([]string{"mimetype"}, names...)
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	for _, name := range names {
		method := zip.Deflate
		if name == "mimetype" {
			method = zip.Store
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
		if err != nil {
			t.Fatalf("buildTestEPubBytes: create %s: %v", name, err)
		}
		if _, err := io.WriteString(fw, files[name]); err != nil {
			t.Fatalf("buildTestEPubBytes: write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("buildTestEPubBytes: close writer: %v", err)
	}
	return buf.Bytes()
}

// buildTestEPubFile writes the archive to a temporary file.
func buildTestEPubFile(t *testing.T, files map[string]string) string {
	t.Helper()
	fp := filepath.Join(t.TempDir(), "test.epub")
	if err := os.WriteFile(fp, buildTestEPubBytes(t, files), 0o644); err != nil {
		t.Fatalf("buildTestEPubFile: %v", err)
	}
	return fp
}

// openTestEPub opens the archive from memory.
func openTestEPub(t *testing.T, files map[string]string) *Book {
	t.Helper()
	data := buildTestEPubBytes(t, files)
	b, err := NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	return b
}

// sampleOPF is an ePub 2 package with two stylesheets, three images whose
// names do not follow manifest order, and a continuation document.
const sampleOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="bookid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:title>The Sample Book</dc:title>
    <dc:creator opf:file-as="Doe, Jane" opf:role="aut">Jane Doe</dc:creator>
    <dc:creator opf:role="ill">Sam Smith</dc:creator>
    <dc:language>en</dc:language>
    <dc:identifier id="bookid" opf:scheme="UUID">urn:uuid:1b4e28ba-2fa1-11d2-883f-0016d3cca427</dc:identifier>
    <dc:identifier opf:scheme="ISBN">978-0-306-40615-7</dc:identifier>
    <dc:publisher>Sample &amp; Sons</dc:publisher>
    <dc:date>2020-05-01</dc:date>
    <dc:description>A book&nbsp;for tests.</dc:description>
    <dc:subject>Fiction</dc:subject>
    <dc:subject>Adventure</dc:subject>
    <dc:rights>Public domain</dc:rights>
    <meta name="calibre:series" content="Saga"/>
    <meta name="calibre:series_index" content="2"/>
    <meta name="cover" content="img-photo"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="css-b" href="styles/b.css" media-type="text/css"/>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="img-z" href="images/z.png" media-type="image/png"/>
    <item id="ch1b" href="ch1b.xhtml" media-type="application/xhtml+xml"/>
    <item id="img-photo" href="images/photo.jpg" media-type="image/jpeg"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css-a" href="styles/a.css" media-type="text/css"/>
    <item id="img-a" href="images/a.gif" media-type="image/gif"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch1b"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const sampleNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head><meta name="dtb:uid" content="urn:uuid:1b4e28ba-2fa1-11d2-883f-0016d3cca427"/></head>
  <docTitle><text>The Sample Book</text></docTitle>
  <navMap>
    <navPoint id="np1" playOrder="1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="ch1.xhtml"/>
    </navPoint>
    <navPoint id="np2" playOrder="2">
      <navLabel><text>Chapter Two</text></navLabel>
      <content src="ch2.xhtml#start"/>
      <navPoint id="np3" playOrder="3">
        <navLabel><text>A Section</text></navLabel>
        <content src="ch2.xhtml#sec"/>
      </navPoint>
    </navPoint>
  </navMap>
</ncx>`

// sampleFiles returns the files of the sample book.
func sampleFiles() map[string]string {
	return map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": validContainerXML,
		"OEBPS/content.opf":      sampleOPF,
		"OEBPS/toc.ncx":          sampleNCX,
		"OEBPS/styles/a.css":     "h1 { color: red }",
		"OEBPS/styles/b.css":     "p { margin: 0 }",
		"OEBPS/ch1.xhtml": `<html><head><title>One</title></head><body>` +
			`<h1 id="c1">Chapter One</h1>` +
			`<p>See <a href="ch2.xhtml#start">two</a> and <a href="ch2.xhtml#sec">the section</a>.</p>` +
			`<img src="images/photo.jpg" alt="photo"/>` +
			`</body></html>`,
		"OEBPS/ch1b.xhtml": `<html><head><title>One, continued</title></head><body>` +
			`<p>Continued text.</p><script>alert(1)</script>` +
			`</body></html>`,
		"OEBPS/ch2.xhtml": `<html><head><title>Two</title></head><body>` +
			`<h1 id="start">Chapter Two</h1>` +
			`<p id="sec" onclick="steal()">Section text <a href="#sec">here</a> <a href="ch1.xhtml">back</a></p>` +
			`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink"><image xlink:href="images/z.png"/></svg>` +
			`</body></html>`,
		"OEBPS/images/z.png":     "\x89PNG z",
		"OEBPS/images/photo.jpg": "\xFF\xD8\xFF photo",
		"OEBPS/images/a.gif":     "GIF89a a",
	}
}

// packageFiles builds a book from a package document, an optional NCX and
// body fragments keyed by file name under OEBPS/.
func packageFiles(opf, ncx string, bodies map[string]string) map[string]string {
	files := map[string]string{
		"mimetype":               "application/epub+zip",
		"META-INF/container.xml": validContainerXML,
		"OEBPS/content.opf":      opf,
	}
	if ncx != "" {
		files["OEBPS/toc.ncx"] = ncx
	}
	for name, body := range bodies {
		files["OEBPS/"+name] = "<html><head><title>" + name + "</title></head><body>" + body + "</body></html>"
	}
	return files
}

// simpleOPF declares one document per name, in spine order, and an NCX.
func simpleOPF(names ...string) string {
	var manifest, spine strings.Builder
	for _, n := range names {
		id := strings.TrimSuffix(n, ".xhtml")
		manifest.WriteString(`<item id="` + id + `" href="` + n + `" media-type="application/xhtml+xml"/>`)
		spine.WriteString(`<itemref idref="` + id + `"/>`)
	}
	return `<?xml version="1.0"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Simple</dc:title></metadata>
  <manifest><item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>` + manifest.String() + `</manifest>
  <spine toc="ncx">` + spine.String() + `</spine>
</package>`
}

// simpleNCX declares navigation points as label/src pairs in play order.
func simpleNCX(points ...[2]string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><ncx xmlns="http://www.daisy.org/z3986/2005/ncx/"><docTitle><text>Simple</text></docTitle><navMap>`)
	for _, p := range points {
		sb.WriteString(`<navPoint><navLabel><text>` + p[0] + `</text></navLabel><content src="` + p[1] + `"/></navPoint>`)
	}
	sb.WriteString(`</navMap></ncx>`)
	return sb.String()
}

// innerHTML renders the children of n.
func innerHTML(t *testing.T, n *html.Node) string {
	t.Helper()
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			t.Fatalf("render: %v", err)
		}
	}
	return buf.String()
}
