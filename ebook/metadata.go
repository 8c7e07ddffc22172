package ebook

import (
	"strings"

	"github.com/sawyersteven/KindleManager-sub001/epub"
	"github.com/sawyersteven/KindleManager-sub001/mobi"
)

// authorSeparator joins several creators into BookMetadata.Author.
const authorSeparator = " & "

// BookMetadata is the format-independent view of a book's metadata.
type BookMetadata struct {
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
	Description string   `json:"description,omitempty"`
	PubDate     string   `json:"pub_date,omitempty"`
	Rights      string   `json:"rights,omitempty"`
	Language    string   `json:"language,omitempty"`

	// Series and SeriesNumber are only stored by ePub; MOBI books always
	// read them empty.
	Series       string  `json:"series,omitempty"`
	SeriesNumber float64 `json:"series_number,omitempty"`

	Format Format `json:"format"`
	Path   string `json:"path"`
}

func (m BookMetadata) clone() BookMetadata {
	m.Subjects = append([]string(nil), m.Subjects...)
	return m
}

func fromEPub(md epub.Metadata) BookMetadata {
	return BookMetadata{
		Title:        md.Title,
		Author:       strings.Join(md.AuthorNames(), authorSeparator),
		ISBN:         md.ISBN,
		Publisher:    md.Publisher,
		Subjects:     append([]string(nil), md.Subjects...),
		Description:  md.Description,
		PubDate:      md.Date,
		Rights:       md.Rights,
		Language:     md.Language,
		Series:       md.Series,
		SeriesNumber: md.SeriesIndex,
	}
}

func fromMOBI(md mobi.Metadata) BookMetadata {
	return BookMetadata{
		Title:       md.Title,
		Author:      md.Author,
		ISBN:        md.ISBN,
		Publisher:   md.Publisher,
		Subjects:    append([]string(nil), md.Subjects...),
		Description: md.Description,
		PubDate:     md.PublishDate,
		Rights:      md.Rights,
		Language:    md.Language,
	}
}

// toEPub applies m over the package metadata. Creators are only re-split
// when the author text changed, so a name holding an ampersand survives an
// unrelated edit.
func (m BookMetadata) toEPub(md epub.Metadata, read BookMetadata) epub.Metadata {
	md.Title = m.Title
	if m.Author != read.Author {
		md.Authors = nil
		for _, name := range strings.Split(m.Author, "&") {
			if name = strings.TrimSpace(name); name != "" {
				md.Authors = append(md.Authors, epub.Author{Name: name})
			}
		}
	}
	md.ISBN = m.ISBN
	md.Publisher = m.Publisher
	md.Subjects = append([]string(nil), m.Subjects...)
	md.Description = m.Description
	md.Date = m.PubDate
	md.Rights = m.Rights
	md.Language = m.Language
	md.Series = m.Series
	md.SeriesIndex = m.SeriesNumber
	return md
}

// toMOBI applies m over the keyed metadata, keeping the fields BookMetadata
// has no place for.
func (m BookMetadata) toMOBI(md mobi.Metadata) mobi.Metadata {
	md.Title = m.Title
	md.Author = m.Author
	md.ISBN = m.ISBN
	md.Publisher = m.Publisher
	md.Subjects = append([]string(nil), m.Subjects...)
	md.Description = m.Description
	md.PublishDate = m.PubDate
	md.Rights = m.Rights
	md.Language = m.Language
	return md
}
