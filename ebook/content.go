package ebook

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/sawyersteven/KindleManager-sub001/epub"
	"github.com/sawyersteven/KindleManager-sub001/mobi"
)

// MergedDocument is the whole text of a book as one linear document.
type MergedDocument struct {
	Title      string
	Chapters   []Chapter
	Stylesheet string

	// Warnings lists navigation entries that could not be resolved.
	Warnings []string
}

// Chapter is a labelled part of a MergedDocument.
type Chapter struct {
	Label string
	Body  *html.Node
}

// TextContent merges the text of b. ePub books are folded into chapters
// along their navigation; MOBI books form a single chapter.
func TextContent(b *Book) (*MergedDocument, error) {
	if b.closed() {
		return nil, ErrClosed
	}
	var (
		doc *MergedDocument
		err error
	)
	if b.epub != nil {
		doc, err = mergeEPub(b.epub)
	} else {
		doc, err = mergeMOBI(b.mobi, b.Metadata.Title)
	}
	if err != nil {
		b.log.Error().Err(err).Msg("text extraction failed")
		return nil, err
	}
	b.log.Debug().Int("chapters", len(doc.Chapters)).Msg("text merged")
	return doc, nil
}

func mergeEPub(eb *epub.Book) (*MergedDocument, error) {
	a, err := eb.Assemble()
	if err != nil {
		return nil, err
	}
	doc := &MergedDocument{Title: a.Title, Stylesheet: a.Stylesheet, Warnings: a.Warnings}
	for _, ch := range a.Chapters {
		doc.Chapters = append(doc.Chapters, Chapter{Label: ch.Label, Body: ch.Body})
	}
	return doc, nil
}

func mergeMOBI(mb *mobi.Book, title string) (*MergedDocument, error) {
	text, err := mb.Text()
	if err != nil {
		return nil, err
	}
	root, err := html.Parse(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("ebook: parse text: %w", err)
	}
	body := findBody(root)
	if body == nil {
		return nil, errors.New("ebook: text has no body")
	}
	return &MergedDocument{Title: title, Chapters: []Chapter{{Label: title, Body: body}}}, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// Render writes the document as a single XHTML file.
func (d *MergedDocument) Render(w io.Writer) error {
	a := &epub.Assembly{Title: d.Title, Stylesheet: d.Stylesheet}
	for _, ch := range d.Chapters {
		a.Chapters = append(a.Chapters, epub.AssembledChapter{Label: ch.Label, Body: ch.Body})
	}
	return a.Render(w)
}

// PlainText returns the text of every chapter with one line per block
// element and a blank line between chapters.
func (d *MergedDocument) PlainText() string {
	var sb strings.Builder
	for i, ch := range d.Chapters {
		if i > 0 {
			sb.WriteString("\n")
		}
		var cur strings.Builder
		plainText(ch.Body, &cur)
		for _, line := range strings.Split(cur.String(), "\n") {
			if line = strings.Join(strings.Fields(line), " "); line != "" {
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}

func plainText(n *html.Node, sb *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			sb.WriteString(c.Data)
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				continue
			}
			plainText(c, sb)
			if isBlock(c) {
				sb.WriteByte('\n')
			}
		}
	}
}

func isBlock(n *html.Node) bool {
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.Blockquote, atom.Pre,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return n.Data == "mbp:pagebreak"
}

// Images returns the image resources of b in book order.
func Images(b *Book) ([][]byte, error) {
	switch {
	case b.epub != nil:
		return b.epub.Images()
	case b.mobi != nil:
		return b.mobi.Images()
	}
	return nil, ErrClosed
}

// Cover returns the cover image of b, or ErrNoCover.
func Cover(b *Book) ([]byte, error) {
	switch {
	case b.epub != nil:
		c, err := b.epub.Cover()
		if errors.Is(err, epub.ErrNoCover) {
			return nil, ErrNoCover
		}
		return c.Data, err
	case b.mobi != nil:
		data, err := b.mobi.Cover()
		if errors.Is(err, mobi.ErrRecordOutOfRange) {
			return nil, fmt.Errorf("%w: %w", ErrNoCover, err)
		}
		return data, err
	}
	return nil, ErrClosed
}
