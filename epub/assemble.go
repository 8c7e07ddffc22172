package epub

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// beginReadingLabel names the chapter opened by leading documents that no
// navigation entry points at.
const beginReadingLabel = "Begin Reading"

// Assembly is the content of a book folded into one linear document.
type Assembly struct {
	Title    string
	Chapters []AssembledChapter

	// Stylesheet is every text/css resource concatenated in manifest order.
	Stylesheet string

	// Images are the manifest images in manifest order, named as the
	// chapter bodies reference them.
	Images []Image

	// Warnings lists navigation entries that could not be resolved.
	Warnings []string
}

// AssembledChapter is a named chapter and the documents folded into it.
type AssembledChapter struct {
	Label string

	// DocID is the manifest id of the document that opened the chapter.
	DocID string

	// Body is the body element of that document with the bodies of its
	// continuation documents appended in spine order.
	Body *html.Node
}

// document is a parsed spine document.
type document struct {
	id   string
	path string
	body *html.Node
}

// Assemble folds the spine into chapters and makes the result link
// consistent. Navigation targets get sequential ten-digit ids in play order,
// images get sequential five-digit names in manifest order and stylesheets
// are concatenated. A book without navigation fails with
// ErrMissingNavigation; any unreadable document fails the whole call.
func (b *Book) Assemble() (*Assembly, error) {
	if b.toc == nil {
		return nil, ErrMissingNavigation
	}

	docs, err := b.loadDocuments()
	if err != nil {
		return nil, err
	}

	a := &Assembly{Title: b.metadata.Title}
	warn := func(msg string) { a.Warnings = append(a.Warnings, msg) }

	entries := playOrder(b.toc)
	index := newLinkIndex(docs)
	index.renumberAnchors(entries, warn)

	if a.Images, err = b.loadImages(); err != nil {
		return nil, err
	}
	renameImages(docs, a.Images)

	if a.Stylesheet, err = b.stylesheet(); err != nil {
		return nil, err
	}

	a.Chapters = groupChapters(docs, chapterLabels(entries))
	for _, ch := range a.Chapters {
		cleanNode(ch.Body)
	}
	return a, nil
}

// loadDocuments parses every markup document of the spine in order.
func (b *Book) loadDocuments() ([]*document, error) {
	var docs []*document
	for _, si := range b.spine {
		if !isMarkup(si.MediaType) {
			continue
		}
		data, err := b.arc.read(si.Path)
		if err != nil {
			return nil, err
		}
		root, err := html.Parse(bytes.NewReader(stripBOM(data)))
		if err != nil {
			return nil, fmt.Errorf("epub: parse %s: %w", si.Path, err)
		}
		body := findElement(root, atom.Body)
		if body == nil {
			return nil, fmt.Errorf("epub: %s has no body: %w", si.Path, ErrInvalidEPub)
		}
		docs = append(docs, &document{id: si.ID, path: si.Path, body: body})
	}
	return docs, nil
}

// chapterLabels maps each document path to the label of the first
// navigation entry, in play order, that points into it.
func chapterLabels(entries []navEntry) map[string]string {
	labels := make(map[string]string)
	for _, e := range entries {
		if _, ok := labels[e.path]; !ok {
			labels[e.path] = e.label
		}
	}
	return labels
}

// groupChapters starts a chapter at every document a navigation entry
// points at and appends every other document to the chapter before it.
func groupChapters(docs []*document, labels map[string]string) []AssembledChapter {
	var chapters []AssembledChapter
	for _, d := range docs {
		label, named := labels[d.path]
		if !named && len(chapters) > 0 {
			last := chapters[len(chapters)-1].Body
			for c := d.body.FirstChild; c != nil; c = d.body.FirstChild {
				d.body.RemoveChild(c)
				last.AppendChild(c)
			}
			continue
		}
		if !named {
			label = beginReadingLabel
		}
		chapters = append(chapters, AssembledChapter{Label: label, DocID: d.id, Body: d.body})
	}
	return chapters
}

// stylesheet concatenates every text/css resource in manifest order.
func (b *Book) stylesheet() (string, error) {
	var sb strings.Builder
	for _, m := range b.manifest {
		if !strings.EqualFold(m.MediaType, cssMimeType) {
			continue
		}
		data, err := b.arc.read(m.Path)
		if err != nil {
			return "", fmt.Errorf("epub: stylesheet %s: %w", m.ID, err)
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.Write(stripBOM(data))
	}
	return sb.String(), nil
}

// Render writes the assembly as one XHTML document with the stylesheet
// inlined and a page break before every chapter after the first.
func (a *Assembly) Render(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	sb.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml"><head>`)
	sb.WriteString(`<meta http-equiv="Content-Type" content="text/html; charset=utf-8"/>`)
	sb.WriteString("<title>" + html.EscapeString(a.Title) + "</title>")
	if a.Stylesheet != "" {
		sb.WriteString(`<style type="text/css">` + "\n" + a.Stylesheet + "\n</style>")
	}
	sb.WriteString("</head><body>\n")
	if _, err := io.WriteString(w, sb.String()); err != nil {
		return err
	}

	for i, ch := range a.Chapters {
		open := `<div class="chapter">`
		if i > 0 {
			open = `<div class="chapter" style="page-break-before: always">`
		}
		if _, err := io.WriteString(w, open); err != nil {
			return err
		}
		for c := ch.Body.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(w, c); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "</div>\n"); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</body></html>\n")
	return err
}
