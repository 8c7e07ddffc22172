package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sawyersteven/KindleManager-sub001/ebook"
)

var jpegData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 'j', 'p', 'g'}

// writeBook writes a one-chapter ePub with a cover image to dir.
func writeBook(t *testing.T, dir, name, title string) string {
	t.Helper()
	files := []struct{ name, body string }{
		{"META-INF/container.xml", `<?xml version="1.0"?><container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container"><rootfiles><rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/></rootfiles></container>`},
		{"OEBPS/content.opf", `<?xml version="1.0"?>
<package version="2.0" xmlns="http://www.idpf.org/2007/opf" unique-identifier="id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>` + title + `</dc:title>
    <dc:creator>Ann Author</dc:creator>
    <dc:identifier id="id">urn:uuid:6f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0</dc:identifier>
    <dc:language>en</dc:language>
    <meta name="cover" content="cover"/>
  </metadata>
  <manifest>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="ch" href="ch.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover" href="cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine toc="ncx"><itemref idref="ch"/></spine>
</package>`},
		{"OEBPS/toc.ncx", `<?xml version="1.0"?><ncx xmlns="http://www.daisy.org/z3986/2005/ncx/"><docTitle><text>` + title + `</text></docTitle><navMap><navPoint playOrder="1"><navLabel><text>Start</text></navLabel><content src="ch.xhtml"/></navPoint></navMap></ncx>`},
		{"OEBPS/ch.xhtml", `<html><head><title>c</title></head><body><h1>Start</h1><p>Some text.</p><img src="cover.jpg"/></body></html>`},
		{"OEBPS/cover.jpg", string(jpegData)},
	}
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("application/epub+zip"))
	for _, f := range files {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(f.body))
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	fp := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fp, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return fp
}

// run executes the command line and returns what it wrote to stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInfo(t *testing.T) {
	fp := writeBook(t, t.TempDir(), "book.epub", "The Title")

	out, err := run(t, "info", fp)
	if err != nil {
		t.Fatalf("info error = %v", err)
	}
	for _, want := range []string{"Title:", "The Title", "Ann Author", "epub"} {
		if !strings.Contains(out, want) {
			t.Errorf("info output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Series:") {
		t.Errorf("empty series printed:\n%s", out)
	}

	out, err = run(t, "info", "-o", "json", fp)
	if err != nil {
		t.Fatal(err)
	}
	var md ebook.BookMetadata
	if err := json.Unmarshal([]byte(out), &md); err != nil {
		t.Fatalf("info -o json is not JSON: %v\n%s", err, out)
	}
	if md.Title != "The Title" || md.Path != fp || md.Format != ebook.FormatEPub {
		t.Errorf("json metadata = %+v", md)
	}
}

func TestInfo_Errors(t *testing.T) {
	if _, err := run(t, "info"); err == nil {
		t.Error("info without a book succeeded")
	}
	if _, err := run(t, "info", filepath.Join(t.TempDir(), "missing.epub")); err == nil {
		t.Error("info of a missing file succeeded")
	}
	if _, err := run(t, "info", "--config", filepath.Join(t.TempDir(), "none.yaml"), "x.epub"); err == nil {
		t.Error("a missing config file was accepted")
	}
}

func TestSet(t *testing.T) {
	fp := writeBook(t, t.TempDir(), "book.epub", "Old")

	if _, err := run(t, "set", fp); err == nil {
		t.Error("set without flags succeeded")
	}

	_, err := run(t, "set", fp, "--title", "New", "--subject", "One", "--subject", "Two",
		"--series", "Saga", "--series-number", "2")
	if err != nil {
		t.Fatalf("set error = %v", err)
	}

	b, err := ebook.Open(fp)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	md := b.Metadata
	if md.Title != "New" || md.Author != "Ann Author" || md.Series != "Saga" || md.SeriesNumber != 2 {
		t.Errorf("metadata after set = %+v", md)
	}
	if strings.Join(md.Subjects, ",") != "One,Two" {
		t.Errorf("Subjects = %v", md.Subjects)
	}
}

func TestText(t *testing.T) {
	dir := t.TempDir()
	fp := writeBook(t, dir, "book.epub", "Readable")

	out, err := run(t, "text", "--plain", fp)
	if err != nil {
		t.Fatalf("text error = %v", err)
	}
	if out != "Start\nSome text.\n" {
		t.Errorf("plain text = %q", out)
	}

	target := filepath.Join(dir, "book.xhtml")
	if _, err := run(t, "text", fp, "--file", target); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("<title>Readable</title>")) || !bytes.Contains(data, []byte(`<img src="00001.jpg"/>`)) {
		t.Errorf("rendered document:\n%s", data)
	}
}

func TestImages(t *testing.T) {
	dir := t.TempDir()
	fp := writeBook(t, dir, "book.epub", "Pictures")
	outDir := filepath.Join(dir, "out")

	if _, err := run(t, "images", fp, outDir); err != nil {
		t.Fatalf("images error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(outDir, "00001.jpg"))
	if err != nil || !bytes.Equal(data, jpegData) {
		t.Errorf("00001.jpg = %q, %v", data, err)
	}

	if _, err := run(t, "images", "--cover", fp, outDir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "cover.jpg")); err != nil {
		t.Errorf("cover not written: %v", err)
	}
}

func TestImageExt(t *testing.T) {
	tests := map[string]string{
		"\xFF\xD8\xFF\xE0": ".jpg",
		"\x89PNG\r\n":      ".png",
		"GIF89a":           ".gif",
		"BM....":           ".bmp",
		"????":             ".bin",
	}
	for data, want := range tests {
		if got := imageExt([]byte(data)); got != want {
			t.Errorf("imageExt(%q) = %q, want %q", data, got, want)
		}
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "a/one.epub", "One")
	writeBook(t, root, "b/c/two.epub", "Two")

	out, err := run(t, "scan", root, "--workers", "2")
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}
	if !strings.Contains(out, "TITLE") || !strings.Contains(out, "One") || !strings.Contains(out, "Two") {
		t.Errorf("scan output:\n%s", out)
	}

	if err := os.WriteFile(filepath.Join(root, "broken.epub"), []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, "scan", root, "-o", "json")
	if err == nil || !strings.Contains(err.Error(), "1 of 3 books failed") {
		t.Errorf("scan error = %v", err)
	}
	var books []ebook.BookMetadata
	if err := json.Unmarshal([]byte(out), &books); err != nil || len(books) != 2 {
		t.Errorf("json catalog = %d books, %v", len(books), err)
	}
}

func TestScan_ConfigFile(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "only.epub", "Configured")
	writeBook(t, root, "skip/other.epub", "Skipped")

	cfg := filepath.Join(t.TempDir(), "km.yaml")
	yaml := "library:\n  root: " + root + "\n  patterns: [\"*.epub\"]\n  workers: 1\n"
	if err := os.WriteFile(cfg, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "scan", "--config", cfg)
	if err != nil {
		t.Fatalf("scan error = %v", err)
	}
	if !strings.Contains(out, "Configured") || strings.Contains(out, "Skipped") {
		t.Errorf("scan output:\n%s", out)
	}
}
