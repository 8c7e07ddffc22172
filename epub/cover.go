package epub

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// CoverImage is the cover of a book.
type CoverImage struct {
	Path      string
	MediaType string
	Data      []byte
}

// Cover locates the cover image. It tries, in order, the ePub 3
// cover-image property, the ePub 2 cover meta, the guide's cover page, any
// manifest image whose id or path mentions "cover" and finally the first
// image of the first spine document.
func (b *Book) Cover() (CoverImage, error) {
	for _, find := range []func() (ManifestItem, bool){
		b.coverFromProperty,
		b.coverFromMeta,
		b.coverFromGuide,
		b.coverFromName,
		b.coverFromFirstSpine,
	} {
		if m, ok := find(); ok {
			data, err := b.arc.read(m.Path)
			if err != nil {
				return CoverImage{}, err
			}
			return CoverImage{Path: m.Path, MediaType: m.MediaType, Data: data}, nil
		}
	}
	return CoverImage{}, ErrNoCover
}

func (b *Book) coverFromProperty() (ManifestItem, bool) {
	for _, m := range b.manifest {
		if m.HasProperty("cover-image") && m.IsImage() {
			return m, true
		}
	}
	return ManifestItem{}, false
}

func (b *Book) coverFromMeta() (ManifestItem, bool) {
	for _, meta := range b.pkg.Metadata.Metas {
		if !strings.EqualFold(meta.Name, "cover") {
			continue
		}
		i, ok := b.manifestByID[strings.TrimSpace(meta.Content)]
		if !ok {
			continue
		}
		if m := b.manifest[i]; m.IsImage() {
			return m, true
		}
		if m, ok := b.firstImageIn(b.manifest[i].Path); ok {
			return m, true
		}
	}
	return ManifestItem{}, false
}

func (b *Book) coverFromGuide() (ManifestItem, bool) {
	for _, ref := range b.pkg.Guide {
		if !strings.EqualFold(ref.Type, "cover") {
			continue
		}
		p, _ := splitFragment(ref.Href)
		if p = resolvePath(b.opfPath, p); p == "" {
			continue
		}
		if m, ok := b.firstImageIn(p); ok {
			return m, true
		}
	}
	return ManifestItem{}, false
}

func (b *Book) coverFromName() (ManifestItem, bool) {
	for _, m := range b.manifest {
		if m.IsImage() && (strings.Contains(strings.ToLower(m.ID), "cover") || strings.Contains(strings.ToLower(m.Path), "cover")) {
			return m, true
		}
	}
	return ManifestItem{}, false
}

func (b *Book) coverFromFirstSpine() (ManifestItem, bool) {
	if len(b.spine) == 0 {
		return ManifestItem{}, false
	}
	return b.firstImageIn(b.spine[0].Path)
}

// firstImageIn returns the manifest image referenced first by the document
// at docPath.
func (b *Book) firstImageIn(docPath string) (ManifestItem, bool) {
	data, err := b.arc.read(docPath)
	if err != nil {
		return ManifestItem{}, false
	}
	root, err := html.Parse(bytes.NewReader(stripBOM(data)))
	if err != nil {
		return ManifestItem{}, false
	}

	var src string
	walk(root, func(n *html.Node) {
		if src != "" {
			return
		}
		switch n.DataAtom {
		case atom.Img:
			src, _ = getAttr(n, "src")
		case atom.Image:
			if src, _ = getAttr(n, "xlink:href"); src == "" {
				src, _ = getAttr(n, "href")
			}
		}
	})
	if src == "" {
		return ManifestItem{}, false
	}
	p := resolvePath(docPath, src)
	for _, m := range b.manifest {
		if m.IsImage() && strings.EqualFold(m.Path, p) {
			return m, true
		}
	}
	return ManifestItem{}, false
}
