// Package library scans a directory tree for books and records their
// metadata in a catalog.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sawyersteven/KindleManager-sub001/ebook"
	"github.com/sawyersteven/KindleManager-sub001/internal/logging"
)

// DefaultPatterns match every supported book below the scan root.
var DefaultPatterns = []string{"**/*.{epub,mobi,azw,azw3,prc}"}

// Scanner opens every book matching Patterns below a root and stores its
// metadata in Catalog. A Scanner may run several scans, one at a time or
// concurrently; the metadata cache is shared between them.
type Scanner struct {
	// Patterns are doublestar globs relative to the scan root.
	Patterns []string

	// Workers bounds the number of books open at once.
	Workers int

	Catalog Catalog

	catalogMu sync.Mutex
	cache     *lru.Cache[cacheKey, ebook.BookMetadata]
}

// cacheKey identifies one version of a file.
type cacheKey struct {
	path    string
	size    int64
	modTime time.Time
}

// NewScanner returns a Scanner with the default patterns, one worker per
// CPU and a metadata cache of cacheSize entries. A cacheSize of zero
// disables the cache.
func NewScanner(catalog Catalog, workers, cacheSize int) (*Scanner, error) {
	s := &Scanner{Patterns: DefaultPatterns, Workers: workers, Catalog: catalog}
	if cacheSize > 0 {
		c, err := lru.New[cacheKey, ebook.BookMetadata](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create metadata cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Failure is a book that could not be cataloged.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return f.Path + ": " + f.Err.Error() }

func (f Failure) Unwrap() error { return f.Err }

// Report summarizes a scan.
type Report struct {
	RunID string

	// Found is the number of files matched by the patterns.
	Found int

	// Cataloged counts the books stored in the catalog, Cached the subset
	// whose metadata came from the cache.
	Cataloged int
	Cached    int

	// Failures are ordered by path.
	Failures []Failure
}

// Err joins every failure, or returns nil when there were none.
func (r *Report) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Scan catalogs every matching book below root. A book that fails to open
// or to be stored is recorded in the report and does not stop the scan.
// Cancelling ctx stops the scan before the next book; the partial report
// is returned with the context's error.
func (s *Scanner) Scan(ctx context.Context, root string) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	log := logging.FromContext(ctx).With().Str("run_id", report.RunID).Str("root", root).Logger()
	ctx = logging.WithLogger(ctx, log)

	paths, err := s.discover(root)
	if err != nil {
		return nil, err
	}
	report.Found = len(paths)
	log.Info().Int("found", len(paths)).Msg("scan started")

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))

	for _, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			md, cached, err := s.load(gctx, p)
			if err == nil {
				err = s.put(gctx, md)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("book", p).Msg("book skipped")
				report.Failures = append(report.Failures, Failure{Path: p, Err: err})
				return nil
			}
			report.Cataloged++
			if cached {
				report.Cached++
			}
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sort.Slice(report.Failures, func(i, j int) bool { return report.Failures[i].Path < report.Failures[j].Path })
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("cataloged", report.Cataloged).Int("cached", report.Cached).Int("failed", len(report.Failures)).Msg("scan finished")
	return report, err
}

// discover returns the sorted, deduplicated regular files matching any
// pattern below root.
func (s *Scanner) discover(root string) ([]string, error) {
	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	fsys := os.DirFS(root)

	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			p := filepath.Join(root, filepath.FromSlash(m))
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// load returns the metadata of the book at path, from the cache when the
// file has not changed since it was last opened.
func (s *Scanner) load(ctx context.Context, path string) (ebook.BookMetadata, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ebook.BookMetadata{}, false, err
	}
	key := cacheKey{path: path, size: info.Size(), modTime: info.ModTime()}
	if s.cache != nil {
		if md, ok := s.cache.Get(key); ok {
			return md, true, nil
		}
	}

	b, err := ebook.OpenContext(ctx, path)
	if err != nil {
		return ebook.BookMetadata{}, false, err
	}
	md := b.Metadata
	if err := b.Close(); err != nil {
		return ebook.BookMetadata{}, false, err
	}
	if s.cache != nil {
		s.cache.Add(key, md)
	}
	return md, false, nil
}

func (s *Scanner) put(ctx context.Context, md ebook.BookMetadata) error {
	if s.Catalog == nil {
		return nil
	}
	s.catalogMu.Lock()
	defer s.catalogMu.Unlock()
	if err := s.Catalog.Put(ctx, md); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	return nil
}
