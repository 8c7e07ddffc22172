package epub

import (
	"encoding/xml"
	"fmt"
	"strings"
)

const (
	containerPath   = "META-INF/container.xml"
	packageMimeType = "application/oebps-package+xml"
)

type containerDoc struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// locatePackage returns the archive path of the package document. The
// rootfile with the package media type wins; any other non-empty rootfile
// is the fallback. Archives without container.xml fall back to the first
// .opf entry.
func locatePackage(a *archive) (string, error) {
	f := a.find(containerPath)
	if f == nil {
		for _, e := range a.zr.File {
			if strings.HasSuffix(strings.ToLower(e.Name), ".opf") {
				return e.Name, nil
			}
		}
		return "", fmt.Errorf("epub: no container.xml and no .opf entry: %w", ErrInvalidEPub)
	}

	data, err := readEntry(f, maxEntrySize)
	if err != nil {
		return "", err
	}
	var c containerDoc
	if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
		return "", fmt.Errorf("epub: parse container.xml: %w", err)
	}

	var fallback string
	for _, rf := range c.RootFiles {
		p := strings.TrimSpace(rf.FullPath)
		if p == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), packageMimeType) {
			return p, nil
		}
		if fallback == "" {
			fallback = p
		}
	}
	if fallback == "" {
		return "", fmt.Errorf("epub: container.xml names no package document: %w", ErrInvalidEPub)
	}
	return fallback, nil
}
