package epub

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Metadata holds the bibliographic fields of the package document.
type Metadata struct {
	// Version is the package version attribute, "2.0" when absent.
	Version string

	// Title is the primary dc:title; ePub 3 display-seq ordering is honoured.
	Title string

	Authors     []Author
	Language    string
	Identifiers []Identifier

	// ISBN is the first identifier that is, or is declared as, an ISBN.
	ISBN string

	Publisher   string
	Date        string
	Description string
	Subjects    []string
	Rights      string
	Source      string

	// Series and SeriesIndex come from calibre:series metas or an ePub 3
	// belongs-to-collection property.
	Series      string
	SeriesIndex float64
}

// Author is a dc:creator entry.
type Author struct {
	Name   string
	FileAs string
	Role   string
}

// Identifier is a dc:identifier entry.
type Identifier struct {
	Value  string
	Scheme string
	ID     string
}

const (
	calibreSeries      = "calibre:series"
	calibreSeriesIndex = "calibre:series_index"
)

var isbnPattern = regexp.MustCompile(`^(?:97[89])?\d{9}[\dXx]$`)

// AuthorNames returns the names of every author in order.
func (m Metadata) AuthorNames() []string {
	names := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		names = append(names, a.Name)
	}
	return names
}

func extractMetadata(pkg *opfPackage) Metadata {
	om := &pkg.Metadata
	refines := refinesByID(om.Metas)

	md := Metadata{
		Version:     pkg.Version,
		Title:       primaryTitle(om.Titles, refines),
		Authors:     authors(om.Creators, refines),
		Language:    first(om.Languages),
		Publisher:   first(om.Publishers),
		Date:        first(om.Dates),
		Description: first(om.Descriptions),
		Rights:      first(om.Rights),
		Source:      first(om.Sources),
	}

	for _, s := range om.Subjects {
		if v := strings.TrimSpace(s.Value); v != "" {
			md.Subjects = append(md.Subjects, v)
		}
	}

	for _, el := range om.Identifiers {
		v := strings.TrimSpace(el.Value)
		if v == "" {
			continue
		}
		id := Identifier{Value: v, Scheme: el.Scheme, ID: el.ID}
		if id.Scheme == "" {
			id.Scheme = refine(refines, el.ID, "identifier-type")
		}
		md.Identifiers = append(md.Identifiers, id)
		if md.ISBN == "" {
			md.ISBN = isbnOf(id)
		}
	}

	md.Series, md.SeriesIndex = series(om.Metas, refines)
	return md
}

func first(els []opfElement) string {
	for _, el := range els {
		if v := strings.TrimSpace(el.Value); v != "" {
			return v
		}
	}
	return ""
}

// refinesByID groups ePub 3 refining metas by the id they refine.
func refinesByID(metas []opfMeta) map[string][]opfMeta {
	m := make(map[string][]opfMeta)
	for _, meta := range metas {
		if id, ok := strings.CutPrefix(strings.TrimSpace(meta.Refines), "#"); ok {
			m[id] = append(m[id], meta)
		}
	}
	return m
}

func refine(refines map[string][]opfMeta, id, property string) string {
	if id == "" {
		return ""
	}
	for _, m := range refines[id] {
		if m.Property == property {
			if v := strings.TrimSpace(m.Value); v != "" {
				return v
			}
		}
	}
	return ""
}

func primaryTitle(titles []opfElement, refines map[string][]opfMeta) string {
	type entry struct {
		value string
		seq   int
	}
	var entries []entry
	for _, t := range titles {
		v := strings.TrimSpace(t.Value)
		if v == "" {
			continue
		}
		seq, err := strconv.Atoi(refine(refines, t.ID, "display-seq"))
		if err != nil || seq <= 0 {
			seq = int(^uint(0) >> 1)
		}
		entries = append(entries, entry{v, seq})
	}
	if len(entries) == 0 {
		return ""
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	return entries[0].value
}

func authors(creators []opfElement, refines map[string][]opfMeta) []Author {
	var out []Author
	for _, c := range creators {
		name := strings.TrimSpace(c.Value)
		if name == "" {
			continue
		}
		a := Author{Name: name, FileAs: c.FileAs, Role: c.Role}
		if a.FileAs == "" {
			a.FileAs = refine(refines, c.ID, "file-as")
		}
		if a.Role == "" {
			a.Role = refine(refines, c.ID, "role")
		}
		out = append(out, a)
	}
	return out
}

// isbnOf returns the bare ISBN of id, or "" when id is not an ISBN.
func isbnOf(id Identifier) string {
	v := id.Value
	if rest, ok := cutPrefixFold(v, "urn:isbn:"); ok {
		v = rest
	} else if !strings.EqualFold(id.Scheme, "isbn") && !strings.EqualFold(id.Scheme, "15") {
		// ONIX code list 5 uses 15 for ISBN-13.
		return ""
	}
	v = strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(v))
	if !isbnPattern.MatchString(v) {
		return ""
	}
	return v
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// series prefers calibre's metas and falls back to the ePub 3 collection
// properties.
func series(metas []opfMeta, refines map[string][]opfMeta) (string, float64) {
	var name, index string
	for _, m := range metas {
		switch m.Name {
		case calibreSeries:
			if name == "" {
				name = strings.TrimSpace(m.Content)
			}
		case calibreSeriesIndex:
			if index == "" {
				index = strings.TrimSpace(m.Content)
			}
		}
	}
	if name == "" {
		for _, m := range metas {
			if m.Property != "belongs-to-collection" || strings.TrimSpace(m.Value) == "" {
				continue
			}
			name = strings.TrimSpace(m.Value)
			index = refine(refines, m.ID, "group-position")
			break
		}
	}
	if name == "" {
		return "", 0
	}
	n, err := strconv.ParseFloat(index, 64)
	if err != nil {
		n = 0
	}
	return name, n
}

func copyMetadata(in Metadata) Metadata {
	out := in
	out.Authors = append([]Author(nil), in.Authors...)
	out.Identifiers = append([]Identifier(nil), in.Identifiers...)
	out.Subjects = append([]string(nil), in.Subjects...)
	return out
}
