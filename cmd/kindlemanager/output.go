package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sawyersteven/KindleManager-sub001/ebook"
)

// printer writes tables or JSON.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) *printer {
	return &printer{format: format, w: w}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table writes header and rows aligned in columns.
func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// kv writes one "key: value" line per pair, skipping empty values.
func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		if pair[1] != "" {
			fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
		}
	}
	tw.Flush()
}

func (p *printer) metadata(md ebook.BookMetadata) error {
	if p.format == "json" {
		return p.json(md)
	}
	series := md.Series
	if series != "" && md.SeriesNumber != 0 {
		series += " #" + strconv.FormatFloat(md.SeriesNumber, 'f', -1, 64)
	}
	p.kv([][2]string{
		{"Title", md.Title},
		{"Author", md.Author},
		{"Series", series},
		{"ISBN", md.ISBN},
		{"Publisher", md.Publisher},
		{"Published", md.PubDate},
		{"Language", md.Language},
		{"Subjects", strings.Join(md.Subjects, "; ")},
		{"Rights", md.Rights},
		{"Description", md.Description},
		{"Format", string(md.Format)},
		{"Path", md.Path},
	})
	return nil
}
