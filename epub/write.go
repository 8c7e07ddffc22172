package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"

	"github.com/sawyersteven/KindleManager-sub001/internal/fileutil"
)

var (
	metadataBlock = regexp.MustCompile(`(?s)(<(?:[A-Za-z_][\w.-]*:)?metadata\b[^>]*>)(.*?)(</(?:[A-Za-z_][\w.-]*:)?metadata\s*>)`)
	identifierEl  = regexp.MustCompile(`(?s)\s*<dc:identifier\b([^>]*?)(?:/>|>(.*?)</dc:identifier\s*>)`)
	calibreMetaEl = regexp.MustCompile(`(?s)\s*<meta\b[^>]*\bname\s*=\s*["']calibre:series(?:_index)?["'][^>]*?(?:/>|>.*?</meta\s*>)`)
	idAttr        = regexp.MustCompile(`\bid\s*=\s*["']([^"']*)["']`)
	schemeAttr    = regexp.MustCompile(`\b(?:opf:)?scheme\s*=\s*["']([^"']*)["']`)
	ncxDocTitle   = regexp.MustCompile(`(?s)(<docTitle\b[^>]*>\s*<text\b[^>]*>)(.*?)(</text\s*>)`)
)

// dcElements match the managed Dublin Core elements with their leading
// whitespace, keyed by local name.
var dcElements = func() map[string]*regexp.Regexp {
	m := make(map[string]*regexp.Regexp)
	for _, name := range []string{"title", "creator", "publisher", "description", "subject", "date", "rights", "language"} {
		m[name] = regexp.MustCompile(`(?s)\s*<dc:` + name + `\b([^>]*?)(?:/>|>.*?</dc:` + name + `\s*>)`)
	}
	return m
}()

// WriteMetadata writes a copy of the archive to path with md as its
// metadata. The package document's title, creators, publisher, description,
// subjects, date, rights, language, ISBN and calibre series metas are
// replaced and the NCX title follows the new title; every other entry is
// copied unchanged. An empty title or language keeps the existing one.
// path is replaced atomically and may be the file the Book was opened from.
func (b *Book) WriteMetadata(path string, md Metadata) error {
	opfFile := b.arc.find(b.opfPath)
	if opfFile == nil {
		return fmt.Errorf("epub: %s: %w", b.opfPath, ErrFileNotFound)
	}
	opf, err := readEntry(opfFile, maxEntrySize)
	if err != nil {
		return err
	}
	newOPF, err := rewritePackageMetadata(opf, md, b.pkg.UniqueIdentifier)
	if err != nil {
		return err
	}
	replace := map[string][]byte{opfFile.Name: newOPF}

	if b.ncxPath != "" && md.Title != "" {
		if f := b.arc.find(b.ncxPath); f != nil {
			ncx, err := readEntry(f, maxEntrySize)
			if err != nil {
				return err
			}
			replace[f.Name] = rewriteNCXTitle(ncx, md.Title)
		}
	}

	return fileutil.WriteTmpThenMove(path, func(w io.Writer) error {
		return b.writeArchive(w, replace)
	})
}

// writeArchive writes the archive with the entries in replace substituted.
// The mimetype entry is written first and stored uncompressed; unchanged
// entries are copied without recompression.
func (b *Book) writeArchive(w io.Writer, replace map[string][]byte) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return fmt.Errorf("epub: write mimetype: %w", err)
	}
	if _, err := io.WriteString(mw, mimetype); err != nil {
		return fmt.Errorf("epub: write mimetype: %w", err)
	}

	for _, f := range b.arc.zr.File {
		if f.Name == "mimetype" {
			continue
		}
		if data, ok := replace[f.Name]; ok {
			fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
			if err != nil {
				return fmt.Errorf("epub: write %s: %w", f.Name, err)
			}
			if _, err := fw.Write(data); err != nil {
				return fmt.Errorf("epub: write %s: %w", f.Name, err)
			}
			continue
		}
		if err := copyRaw(zw, f); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("epub: finish archive: %w", err)
	}
	return nil
}

func copyRaw(zw *zip.Writer, f *zip.File) error {
	r, err := f.OpenRaw()
	if err != nil {
		return fmt.Errorf("epub: read %s: %w", f.Name, err)
	}
	fh := f.FileHeader
	fw, err := zw.CreateRaw(&fh)
	if err != nil {
		return fmt.Errorf("epub: write %s: %w", f.Name, err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return fmt.Errorf("epub: copy %s: %w", f.Name, err)
	}
	return nil
}

// rewritePackageMetadata replaces the managed elements of the metadata
// block of a package document and leaves everything else byte for byte.
func rewritePackageMetadata(opf []byte, md Metadata, uniqueID string) ([]byte, error) {
	loc := metadataBlock.FindSubmatchIndex(opf)
	if loc == nil {
		return nil, fmt.Errorf("epub: package document has no metadata element: %w", ErrInvalidEPub)
	}
	inner := string(opf[loc[4]:loc[5]])

	managed := []string{"creator", "publisher", "description", "subject", "date", "rights"}
	if md.Title != "" {
		managed = append(managed, "title")
	}
	if md.Language != "" {
		managed = append(managed, "language")
	}

	var removedIDs []string
	for _, name := range managed {
		inner = dcElements[name].ReplaceAllStringFunc(inner, func(el string) string {
			if m := idAttr.FindStringSubmatch(el); m != nil && m[1] != "" {
				removedIDs = append(removedIDs, m[1])
			}
			return ""
		})
	}

	keptISBN := ""
	inner = identifierEl.ReplaceAllStringFunc(inner, func(el string) string {
		sub := identifierEl.FindStringSubmatch(el)
		id := Identifier{Value: strings.TrimSpace(sub[2])}
		if m := schemeAttr.FindStringSubmatch(sub[1]); m != nil {
			id.Scheme = m[1]
		}
		if m := idAttr.FindStringSubmatch(sub[1]); m != nil {
			id.ID = m[1]
		}
		isbn := isbnOf(id)
		if isbn == "" {
			return el
		}
		if id.ID != "" && id.ID == uniqueID {
			// The unique identifier must survive; only its text changes.
			switch want := isbnOf(Identifier{Value: md.ISBN, Scheme: "ISBN"}); want {
			case isbn:
				keptISBN = isbn
				return el
			case "":
				removedIDs = append(removedIDs, id.ID)
				return rewriteIdentifier(el, schemeAttr.ReplaceAllString(sub[1], ""), "urn:uuid:"+uuid.NewString())
			default:
				keptISBN = want
				return rewriteIdentifier(el, sub[1], "urn:isbn:"+want)
			}
		}
		if id.ID != "" {
			removedIDs = append(removedIDs, id.ID)
		}
		return ""
	})

	for _, id := range removedIDs {
		refining := regexp.MustCompile(`(?s)\s*<meta\b[^>]*\brefines\s*=\s*["']#` + regexp.QuoteMeta(id) + `["'][^>]*?(?:/>|>.*?</meta\s*>)`)
		inner = refining.ReplaceAllString(inner, "")
	}
	inner = calibreMetaEl.ReplaceAllString(inner, "")

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(inner, " \t\r\n"))
	writeDC := func(name, value string) {
		if value = strings.TrimSpace(value); value == "" {
			return
		}
		sb.WriteString("\n    <dc:" + name + ">")
		xml.EscapeText(&sb, []byte(value))
		sb.WriteString("</dc:" + name + ">")
	}
	writeMeta := func(name, content string) {
		sb.WriteString("\n    <meta name=\"" + name + "\" content=\"")
		xml.EscapeText(&sb, []byte(content))
		sb.WriteString(`"/>`)
	}

	writeDC("title", md.Title)
	for _, a := range md.Authors {
		writeDC("creator", a.Name)
	}
	writeDC("publisher", md.Publisher)
	writeDC("description", md.Description)
	for _, s := range md.Subjects {
		writeDC("subject", s)
	}
	writeDC("date", md.Date)
	writeDC("rights", md.Rights)
	writeDC("language", md.Language)
	if isbn := isbnOf(Identifier{Value: md.ISBN, Scheme: "ISBN"}); isbn != "" && isbn != keptISBN {
		writeDC("identifier", "urn:isbn:"+isbn)
	}
	if s := strings.TrimSpace(md.Series); s != "" {
		writeMeta(calibreSeries, s)
		writeMeta(calibreSeriesIndex, strconv.FormatFloat(md.SeriesIndex, 'f', -1, 64))
	}
	sb.WriteString("\n  ")

	out := make([]byte, 0, len(opf)+sb.Len())
	out = append(out, opf[:loc[4]]...)
	out = append(out, sb.String()...)
	return append(out, opf[loc[5]:]...), nil
}

// rewriteIdentifier rebuilds a dc:identifier element with attrs and value,
// keeping the whitespace that led it.
func rewriteIdentifier(el, attrs, value string) string {
	lead := el[:len(el)-len(strings.TrimLeft(el, " \t\r\n"))]
	var sb strings.Builder
	sb.WriteString(lead + "<dc:identifier" + strings.TrimRight(attrs, " \t\r\n") + ">")
	xml.EscapeText(&sb, []byte(value))
	sb.WriteString("</dc:identifier>")
	return sb.String()
}

// rewriteNCXTitle replaces the text of the NCX docTitle.
func rewriteNCXTitle(ncx []byte, title string) []byte {
	loc := ncxDocTitle.FindSubmatchIndex(ncx)
	if loc == nil {
		return ncx
	}
	var sb strings.Builder
	xml.EscapeText(&sb, []byte(title))
	out := make([]byte, 0, len(ncx)+sb.Len())
	out = append(out, ncx[:loc[4]]...)
	out = append(out, sb.String()...)
	return append(out, ncx[loc[5]:]...)
}
