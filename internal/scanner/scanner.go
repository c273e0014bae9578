// Package scanner discovers artifacts in a Maven2 repository layout and
// streams them as artifact contexts ready for indexing.
package scanner

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mavenidx/mavenidx/internal/artifact"
)

// checksumCacheSize bounds the checksum cache so long-running watch mode
// does not grow without limit.
const checksumCacheSize = 8192

// Result is one streamed scan outcome: an artifact context, or a per-path
// failure the caller may log and skip.
type Result struct {
	Context *artifact.Context
	Path    string
	Err     error
}

// Options configure a scan.
type Options struct {
	// RepositoryID stamps every produced ArtifactInfo.
	RepositoryID string
	// Workers bounds the hashing worker pool; zero means NumCPU.
	Workers int
}

// checksums is one cached hash pair.
type checksums struct {
	sha1 string
	md5  string
}

// Scanner walks a repository root and yields artifact contexts. Checksums
// of unchanged files are served from an LRU cache keyed by path, size and
// modification time.
type Scanner struct {
	gavCalc artifact.M2GavCalculator
	cache   *lru.Cache[string, checksums]
}

// New creates a Scanner.
func New() (*Scanner, error) {
	cache, err := lru.New[string, checksums](checksumCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create checksum cache: %w", err)
	}
	return &Scanner{cache: cache}, nil
}

// Scan walks root and streams results. The returned channel is closed when
// scanning is complete or the context is cancelled.
func (s *Scanner) Scan(ctx context.Context, root string, opts Options) (<-chan Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve repository root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat repository root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository root is not a directory: %s", absRoot)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan Result, workers*4)
	paths := make(chan string, workers*4)

	go func() {
		defer close(results)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(paths)
			return s.walk(gctx, absRoot, paths)
		})
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				for path := range paths {
					res := s.process(absRoot, opts.RepositoryID, path)
					select {
					case results <- res:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil && err != context.Canceled {
			slog.Warn("scan_aborted", slog.String("error", err.Error()))
		}
	}()

	return results, nil
}

// ScanOne builds the artifact context for a single repository file, as used
// by watch mode.
func (s *Scanner) ScanOne(root, repositoryID, path string) Result {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	return s.process(absRoot, repositoryID, path)
}

// walk feeds candidate artifact paths into the pipeline.
func (s *Scanner) walk(ctx context.Context, absRoot string, paths chan<- string) error {
	return filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			// Skip unreadable entries.
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if SkipFile(name) {
			return nil
		}
		select {
		case paths <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})
}

// SkipFile reports whether a repository file is metadata rather than an
// artifact: checksums, signatures, maven-metadata and hidden files.
func SkipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, suffix := range []string{".sha1", ".md5", ".asc", ".lastUpdated"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.HasPrefix(name, "maven-metadata") && strings.HasSuffix(name, ".xml")
}

// process parses one path and assembles its artifact context.
func (s *Scanner) process(absRoot, repositoryID, path string) Result {
	rel, err := filepath.Rel(absRoot, path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	rel = filepath.ToSlash(rel)

	gav, err := s.gavCalc.Gav(rel)
	if err != nil {
		return Result{Path: path, Err: err}
	}

	ac := artifact.NewContext(repositoryID, path, rel, gav)
	if sums, cerr := s.fileChecksums(path); cerr == nil {
		ac.SHA1 = sums.sha1
		ac.MD5 = sums.md5
	}
	return Result{Context: ac, Path: path}
}

// fileChecksums hashes one file, serving unchanged files from the cache.
func (s *Scanner) fileChecksums(path string) (checksums, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return checksums{}, err
	}
	key := fmt.Sprintf("%s|%d|%d", path, fi.Size(), fi.ModTime().UnixNano())
	if sums, ok := s.cache.Get(key); ok {
		return sums, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return checksums{}, err
	}
	defer f.Close()

	sh := sha1.New()
	mh := md5.New()
	if _, err := io.Copy(io.MultiWriter(sh, mh), f); err != nil {
		return checksums{}, err
	}
	sums := checksums{
		sha1: hex.EncodeToString(sh.Sum(nil)),
		md5:  hex.EncodeToString(mh.Sum(nil)),
	}
	s.cache.Add(key, sums)
	return sums, nil
}
