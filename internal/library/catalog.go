package library

import (
	"context"
	"sort"
	"sync"

	"github.com/sawyersteven/KindleManager-sub001/ebook"
)

// Catalog stores the metadata of scanned books. Scanner serializes calls
// to Put.
type Catalog interface {
	Put(ctx context.Context, md ebook.BookMetadata) error
}

// MemoryCatalog is a Catalog keyed by book path.
type MemoryCatalog struct {
	mu    sync.RWMutex
	books map[string]ebook.BookMetadata
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{books: make(map[string]ebook.BookMetadata)}
}

// Put stores md under md.Path, replacing any earlier entry.
func (c *MemoryCatalog) Put(_ context.Context, md ebook.BookMetadata) error {
	c.mu.Lock()
	c.books[md.Path] = md
	c.mu.Unlock()
	return nil
}

// Get returns the entry stored for path.
func (c *MemoryCatalog) Get(path string) (ebook.BookMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md, ok := c.books[path]
	return md, ok
}

// Len returns the number of entries.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.books)
}

// All returns every entry ordered by path.
func (c *MemoryCatalog) All() []ebook.BookMetadata {
	c.mu.RLock()
	out := make([]ebook.BookMetadata, 0, len(c.books))
	for _, md := range c.books {
		out = append(out, md)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
