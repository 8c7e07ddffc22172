package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// TOCItem is one entry of the table of contents.
type TOCItem struct {
	Title string

	// Href is the archive path of the target document, with the fragment
	// when the entry points inside it.
	Href string

	// PlayOrder is the reading position of the entry. NCX entries keep
	// their declared playOrder; other entries are numbered in document
	// order.
	PlayOrder int

	Children []TOCItem
}

// navEntry is a flattened TOCItem with its target split into path and
// fragment.
type navEntry struct {
	label    string
	path     string
	fragment string
	order    int
}

type ncxDoc struct {
	XMLName xml.Name   `xml:"ncx"`
	Points  []ncxPoint `xml:"navMap>navPoint"`
}

type ncxPoint struct {
	PlayOrder string `xml:"playOrder,attr"`
	Label     string `xml:"navLabel>text"`
	Content   struct {
		Src string `xml:"src,attr"`
	} `xml:"content"`
	Children []ncxPoint `xml:"navPoint"`
}

// findNCX returns the manifest item of the NCX: the spine's toc attribute
// first, then any item with the NCX media type.
func (b *Book) findNCX() (ManifestItem, bool) {
	if i, ok := b.manifestByID[b.pkg.Spine.TOC]; ok {
		return b.manifest[i], true
	}
	for _, m := range b.manifest {
		if strings.EqualFold(m.MediaType, ncxMimeType) {
			return m, true
		}
	}
	return ManifestItem{}, false
}

// findNavDocument returns the ePub 3 navigation document.
func (b *Book) findNavDocument() (ManifestItem, bool) {
	for _, m := range b.manifest {
		if m.HasProperty("nav") {
			return m, true
		}
	}
	return ManifestItem{}, false
}

// loadNavigation reads the NCX, falling back to the navigation document.
// Failures are warnings; a book without navigation keeps a nil TOC.
func (b *Book) loadNavigation() {
	b.loadLandmarks()
	if m, ok := b.findNCX(); ok {
		data, err := b.arc.read(m.Path)
		if err == nil {
			var toc []TOCItem
			if toc, err = parseNCX(data, m.Path); err == nil {
				b.ncxPath = m.Path
				b.toc = append([]TOCItem{}, toc...)
				return
			}
		}
		b.warn(fmt.Sprintf("NCX %s: %v", m.Path, err))
	}

	if m, ok := b.findNavDocument(); ok {
		data, err := b.arc.read(m.Path)
		if err == nil {
			var toc []TOCItem
			if toc, err = parseNavDocument(data, m.Path); err == nil {
				b.toc = append([]TOCItem{}, toc...)
				return
			}
		}
		b.warn(fmt.Sprintf("navigation document %s: %v", m.Path, err))
	}
}

func parseNCX(data []byte, ncxPath string) ([]TOCItem, error) {
	var doc ncxDoc
	if err := xml.Unmarshal(stripBOM(replaceNamedEntities(data)), &doc); err != nil {
		return nil, fmt.Errorf("epub: parse NCX: %w", err)
	}
	seq := 0
	return convertPoints(doc.Points, ncxPath, &seq), nil
}

func convertPoints(points []ncxPoint, ncxPath string, seq *int) []TOCItem {
	var items []TOCItem
	for _, p := range points {
		*seq++
		item := TOCItem{
			Title:     strings.TrimSpace(p.Label),
			Href:      resolveHref(ncxPath, p.Content.Src),
			PlayOrder: *seq,
		}
		if n, err := strconv.Atoi(strings.TrimSpace(p.PlayOrder)); err == nil && n > 0 {
			item.PlayOrder = n
		}
		item.Children = convertPoints(p.Children, ncxPath, seq)
		items = append(items, item)
	}
	return items
}

// resolveHref resolves a navigation target and keeps its fragment.
func resolveHref(base, href string) string {
	p, frag := splitFragment(strings.TrimSpace(href))
	if p == "" {
		if frag == "" {
			return ""
		}
		p = base
	} else if p = resolvePath(base, p); p == "" {
		return ""
	}
	if frag != "" {
		return p + "#" + frag
	}
	return p
}

// parseNavDocument reads the toc nav of an ePub 3 navigation document.
func parseNavDocument(data []byte, navPath string) ([]TOCItem, error) {
	doc, err := html.Parse(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return nil, fmt.Errorf("epub: parse navigation document: %w", err)
	}
	toc := findNav(doc, "toc")
	if toc == nil {
		return nil, fmt.Errorf("epub: navigation document has no toc nav: %w", ErrMissingNavigation)
	}
	return navItems(toc, navPath), nil
}

// parseLandmarks reads the landmarks nav of an ePub 3 navigation document.
func parseLandmarks(data []byte, navPath string) ([]TOCItem, error) {
	doc, err := html.Parse(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return nil, fmt.Errorf("epub: parse navigation document: %w", err)
	}
	if nav := findNav(doc, "landmarks"); nav != nil {
		return navItems(nav, navPath), nil
	}
	return nil, nil
}

// findNav returns the first nav element whose epub:type lists typ.
func findNav(doc *html.Node, typ string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) {
		if found != nil || n.DataAtom != atom.Nav {
			return
		}
		v, _ := getAttr(n, "epub:type")
		for _, t := range strings.Fields(v) {
			if t == typ {
				found = n
			}
		}
	})
	return found
}

func navItems(nav *html.Node, navPath string) []TOCItem {
	ol := findElement(nav, atom.Ol)
	if ol == nil {
		return nil
	}
	seq := 0
	return navList(ol, navPath, &seq)
}

func navList(ol *html.Node, navPath string, seq *int) []TOCItem {
	var items []TOCItem
	for li := ol.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		*seq++
		item := TOCItem{PlayOrder: *seq}
		for c := li.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.A:
				if item.Href == "" {
					href, _ := getAttr(c, "href")
					item.Href = resolveHref(navPath, href)
					item.Title = strings.TrimSpace(textOf(c))
				}
			case atom.Span:
				if item.Title == "" {
					item.Title = strings.TrimSpace(textOf(c))
				}
			case atom.Ol:
				item.Children = navList(c, navPath, seq)
			}
		}
		items = append(items, item)
	}
	return items
}

// playOrder flattens the TOC into entries sorted by reading position.
// Entries without a target are dropped.
func playOrder(items []TOCItem) []navEntry {
	var out []navEntry
	var flatten func([]TOCItem)
	flatten = func(items []TOCItem) {
		for _, it := range items {
			if it.Href != "" {
				p, frag := splitFragment(it.Href)
				out = append(out, navEntry{label: it.Title, path: p, fragment: frag, order: it.PlayOrder})
			}
			flatten(it.Children)
		}
	}
	flatten(items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// loadLandmarks reads the landmarks of the navigation document, if any.
func (b *Book) loadLandmarks() {
	m, ok := b.findNavDocument()
	if !ok {
		return
	}
	data, err := b.arc.read(m.Path)
	if err == nil {
		if b.landmarks, err = parseLandmarks(data, m.Path); err == nil {
			return
		}
	}
	b.warn(fmt.Sprintf("navigation document %s: %v", m.Path, err))
}

func copyTOC(in []TOCItem) []TOCItem {
	if in == nil {
		return nil
	}
	out := make([]TOCItem, len(in))
	for i := range in {
		out[i] = in[i]
		out[i].Children = copyTOC(in[i].Children)
	}
	return out
}
