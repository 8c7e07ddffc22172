package ebook

import "errors"

var (
	// ErrUnknownFormat is returned for files whose extension names no
	// supported format.
	ErrUnknownFormat = errors.New("ebook: unknown format")

	// ErrNoCover is returned when a book declares no usable cover image.
	ErrNoCover = errors.New("ebook: no cover image")

	// ErrClosed is returned by operations on a closed Book.
	ErrClosed = errors.New("ebook: book is closed")
)
