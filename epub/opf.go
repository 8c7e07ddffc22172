package epub

import (
	"encoding/xml"
	"fmt"
	"path"
	"strings"
)

const (
	ncxMimeType = "application/x-dtbncx+xml"
	cssMimeType = "text/css"
)

type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Metadata         opfMetadata `xml:"metadata"`
	Manifest         []opfItem   `xml:"manifest>item"`
	Spine            opfSpine    `xml:"spine"`
	Guide            []opfRef    `xml:"guide>reference"`
}

type opfMetadata struct {
	Titles       []opfElement `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creators     []opfElement `xml:"http://purl.org/dc/elements/1.1/ creator"`
	Languages    []opfElement `xml:"http://purl.org/dc/elements/1.1/ language"`
	Identifiers  []opfElement `xml:"http://purl.org/dc/elements/1.1/ identifier"`
	Publishers   []opfElement `xml:"http://purl.org/dc/elements/1.1/ publisher"`
	Dates        []opfElement `xml:"http://purl.org/dc/elements/1.1/ date"`
	Descriptions []opfElement `xml:"http://purl.org/dc/elements/1.1/ description"`
	Subjects     []opfElement `xml:"http://purl.org/dc/elements/1.1/ subject"`
	Rights       []opfElement `xml:"http://purl.org/dc/elements/1.1/ rights"`
	Sources      []opfElement `xml:"http://purl.org/dc/elements/1.1/ source"`
	Metas        []opfMeta    `xml:"meta"`
}

// opfElement is a Dublin Core element. ePub 2 carries file-as, role and
// scheme as attributes; ePub 3 moves them into refining meta elements.
type opfElement struct {
	Value  string `xml:",chardata"`
	ID     string `xml:"id,attr"`
	FileAs string `xml:"file-as,attr"`
	Role   string `xml:"role,attr"`
	Scheme string `xml:"scheme,attr"`
}

// opfMeta is either an ePub 2 name/content pair or an ePub 3 property
// with text content.
type opfMeta struct {
	Name     string `xml:"name,attr"`
	Content  string `xml:"content,attr"`
	ID       string `xml:"id,attr"`
	Property string `xml:"property,attr"`
	Refines  string `xml:"refines,attr"`
	Value    string `xml:",chardata"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	TOC      string `xml:"toc,attr"`
	ItemRefs []struct {
		IDRef  string `xml:"idref,attr"`
		Linear string `xml:"linear,attr"`
	} `xml:"itemref"`
}

type opfRef struct {
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
	Href  string `xml:"href,attr"`
}

// ManifestItem is a resource declared by the package document.
type ManifestItem struct {
	ID         string
	Path       string // archive path, resolved against the package document
	MediaType  string
	Properties []string
}

// HasProperty reports whether the item declares the ePub 3 property p.
func (m ManifestItem) HasProperty(p string) bool {
	for _, v := range m.Properties {
		if v == p {
			return true
		}
	}
	return false
}

// IsImage reports whether the item is an image resource.
func (m ManifestItem) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(m.MediaType), "image/")
}

// SpineItem is one document of the reading order.
type SpineItem struct {
	ID        string
	Path      string
	MediaType string
	Linear    bool
}

func parsePackage(data []byte) (*opfPackage, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(stripBOM(replaceNamedEntities(data)), &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse package document: %w", err)
	}
	if pkg.Version == "" {
		pkg.Version = "2.0"
	}
	return &pkg, nil
}

// buildManifest resolves every manifest href against opfPath. Items whose
// href escapes the archive are dropped.
func buildManifest(items []opfItem, opfPath string) []ManifestItem {
	out := make([]ManifestItem, 0, len(items))
	for _, it := range items {
		p := resolvePath(opfPath, it.Href)
		if p == "" {
			continue
		}
		out = append(out, ManifestItem{
			ID:         it.ID,
			Path:       p,
			MediaType:  strings.TrimSpace(it.MediaType),
			Properties: strings.Fields(it.Properties),
		})
	}
	return out
}

// buildSpine maps itemrefs to manifest entries. Dangling itemrefs are
// reported through warn and skipped.
func buildSpine(s opfSpine, byID map[string]int, manifest []ManifestItem, warn func(string)) []SpineItem {
	spine := make([]SpineItem, 0, len(s.ItemRefs))
	for _, ref := range s.ItemRefs {
		i, ok := byID[ref.IDRef]
		if !ok {
			warn(fmt.Sprintf("spine references unknown manifest item %q", ref.IDRef))
			continue
		}
		m := manifest[i]
		spine = append(spine, SpineItem{
			ID:        m.ID,
			Path:      m.Path,
			MediaType: m.MediaType,
			Linear:    ref.Linear != "no",
		})
	}
	return spine
}

// isMarkup reports whether a media type is an (X)HTML content document.
func isMarkup(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "application/xhtml+xml", "text/html", "application/x-dtbook+xml":
		return true
	}
	return false
}

// imageExt returns the lowercased extension of an image path, defaulting to
// one derived from the media type.
func imageExt(m ManifestItem) string {
	if ext := strings.ToLower(path.Ext(m.Path)); ext != "" {
		return ext
	}
	switch strings.ToLower(m.MediaType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/svg+xml":
		return ".svg"
	}
	return ""
}
