package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrDRMProtected indicates the archive carries a DRM scheme (Adobe
	// ADEPT, Apple FairPlay, Readium LCP or any non-font encryption).
	ErrDRMProtected = errors.New("epub: file is DRM protected")

	// ErrInvalidEPub indicates the archive has no usable package document.
	ErrInvalidEPub = errors.New("epub: invalid ePub file")

	// ErrFileNotFound indicates a required entry is missing from the archive.
	ErrFileNotFound = errors.New("epub: file not found in archive")

	// ErrMissingNavigation indicates the book has neither an NCX nor an
	// ePub 3 navigation document, so its content cannot be reassembled.
	ErrMissingNavigation = errors.New("epub: no navigation document")

	// ErrNoCover indicates no cover image could be located.
	ErrNoCover = errors.New("epub: no cover image found")
)
