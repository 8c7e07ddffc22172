package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sawyersteven/KindleManager-sub001/ebook"
	"github.com/sawyersteven/KindleManager-sub001/internal/fileutil"
	"github.com/sawyersteven/KindleManager-sub001/internal/logging"
)

func openArg(cmd *cobra.Command, path string) (*ebook.Book, error) {
	return ebook.OpenContext(ctxOf(cmd), path)
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <book>",
		Short: "Print the metadata of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openArg(cmd, args[0])
			if err != nil {
				return err
			}
			defer b.Close()
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).metadata(b.Metadata)
		},
	}
}

func newTextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text <book>",
		Short: "Print the text of a book as one XHTML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plain, _ := cmd.Flags().GetBool("plain")
			out, _ := cmd.Flags().GetString("file")

			b, err := openArg(cmd, args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			doc, err := ebook.TextContent(b)
			if err != nil {
				return err
			}
			log := logging.FromContext(ctxOf(cmd))
			for _, w := range doc.Warnings {
				log.Warn().Str("warning", w).Msg("navigation entry skipped")
			}

			var buf bytes.Buffer
			if plain {
				buf.WriteString(doc.PlainText())
			} else if err := doc.Render(&buf); err != nil {
				return err
			}
			if out != "" {
				return fileutil.WriteFile(out, buf.Bytes())
			}
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		},
	}
	cmd.Flags().Bool("plain", false, "print plain text instead of XHTML")
	cmd.Flags().String("file", "", "write to this file instead of stdout")
	return cmd
}

func newImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images <book> <dir>",
		Short: "Extract the images of a book, numbered in book order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coverOnly, _ := cmd.Flags().GetBool("cover")

			b, err := openArg(cmd, args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			var images [][]byte
			if coverOnly {
				cover, err := ebook.Cover(b)
				if err != nil {
					return err
				}
				images = [][]byte{cover}
			} else if images, err = ebook.Images(b); err != nil {
				return err
			}

			if err := os.MkdirAll(args[1], 0o755); err != nil {
				return err
			}
			for i, img := range images {
				name := fmt.Sprintf("%05d%s", i+1, imageExt(img))
				if coverOnly {
					name = "cover" + imageExt(img)
				}
				if err := fileutil.WriteFile(filepath.Join(args[1], name), img); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(args[1], name))
			}
			return nil
		},
	}
	cmd.Flags().Bool("cover", false, "extract only the cover image")
	return cmd
}

// imageExt names the image format from its signature.
func imageExt(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return ".jpg"
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return ".png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return ".gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return ".bmp"
	}
	return ".bin"
}

// metadataFlags bind set's flags to the field each one edits.
var metadataFlags = []struct {
	name, usage string
	field       func(*ebook.BookMetadata) *string
}{
	{"title", "title", func(m *ebook.BookMetadata) *string { return &m.Title }},
	{"author", `authors, joined with " & "`, func(m *ebook.BookMetadata) *string { return &m.Author }},
	{"isbn", "ISBN", func(m *ebook.BookMetadata) *string { return &m.ISBN }},
	{"publisher", "publisher", func(m *ebook.BookMetadata) *string { return &m.Publisher }},
	{"description", "description", func(m *ebook.BookMetadata) *string { return &m.Description }},
	{"date", "publication date", func(m *ebook.BookMetadata) *string { return &m.PubDate }},
	{"rights", "rights statement", func(m *ebook.BookMetadata) *string { return &m.Rights }},
	{"language", "language code", func(m *ebook.BookMetadata) *string { return &m.Language }},
	{"series", "series name (ePub only)", func(m *ebook.BookMetadata) *string { return &m.Series }},
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <book>",
		Short: "Rewrite the metadata of a book in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openArg(cmd, args[0])
			if err != nil {
				return err
			}
			defer b.Close()

			changed := false
			for _, f := range metadataFlags {
				if cmd.Flags().Changed(f.name) {
					*f.field(&b.Metadata), _ = cmd.Flags().GetString(f.name)
					changed = true
				}
			}
			if cmd.Flags().Changed("subject") {
				b.Metadata.Subjects, _ = cmd.Flags().GetStringArray("subject")
				changed = true
			}
			if cmd.Flags().Changed("series-number") {
				b.Metadata.SeriesNumber, _ = cmd.Flags().GetFloat64("series-number")
				changed = true
			}
			if !changed {
				return errors.New("nothing to set")
			}

			if err := ebook.WriteMetadata(b); err != nil {
				return err
			}
			return newPrinter(outputFormat(cmd), cmd.OutOrStdout()).metadata(b.Metadata)
		},
	}
	for _, f := range metadataFlags {
		cmd.Flags().String(f.name, "", f.usage)
	}
	cmd.Flags().StringArray("subject", nil, "subject, repeat for several; replaces every subject")
	cmd.Flags().Float64("series-number", 0, "position in the series (ePub only)")
	return cmd
}
