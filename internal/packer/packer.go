package packer

import (
	"archive/zip"
	"compress/gzip"
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// Request describes one pack run.
type Request struct {
	// Context is the source indexing context.
	Context *index.Context
	// TargetDir receives the published files.
	TargetDir string
	// CreateChecksumFiles writes .sha1/.md5 siblings.
	CreateChecksumFiles bool
	// CreateIncrementalChunks maintains the delta chain.
	CreateIncrementalChunks bool
	// MaxIndexChunks bounds the chain length; zero means the default.
	MaxIndexChunks int
}

// DefaultMaxIndexChunks bounds the incremental chain when unset.
const DefaultMaxIndexChunks = 32

// chunkFileRe matches published chunk files for orphan cleanup.
var chunkFileRe = regexp.MustCompile(`^` + regexp.QuoteMeta(IndexFileName) + `\.([0-9]+)\.gz$`)

// Packer publishes snapshots of an indexing context.
type Packer struct{}

// NewPacker creates an index packer.
func NewPacker() *Packer {
	return &Packer{}
}

// Pack emits the full snapshot, maintains the incremental chain and writes
// the publication properties. The properties file is written after the
// snapshot and chunk files, and atomically, so a failure mid-flight leaves
// the prior snapshot valid; the baseline and checksum siblings follow it.
func (p *Packer) Pack(ctx context.Context, req Request) error {
	ictx := req.Context
	if err := os.MkdirAll(req.TargetDir, 0o755); err != nil {
		return idxerrors.IOError("create target directory", err)
	}
	maxChunks := req.MaxIndexChunks
	if maxChunks <= 0 {
		maxChunks = DefaultMaxIndexChunks
	}

	propsPath := filepath.Join(req.TargetDir, IndexFileName+".properties")
	props, err := ReadProperties(propsPath)
	if err != nil {
		return idxerrors.IOError("read publication properties", err)
	}
	baseline, err := ReadBaseline(filepath.Join(req.TargetDir, baselineFileName))
	if err != nil {
		return idxerrors.IOError("read pack baseline", err)
	}

	docs, err := ictx.AllDocuments()
	if err != nil {
		return err
	}
	live := make([]schema.Document, 0, len(docs))
	tombstones := make([]schema.Document, 0)
	liveSet := map[string]struct{}{}
	for _, doc := range docs {
		if doc.Has(schema.KeyDeleted) {
			tombstones = append(tombstones, doc)
			continue
		}
		if doc.Has(schema.KeyUInfo) {
			live = append(live, doc)
			liveSet[doc.Get(schema.KeyUInfo)] = struct{}{}
		}
	}

	timestamp := ictx.Timestamp()
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	written := []string{}
	fullPath := filepath.Join(req.TargetDir, IndexFileName+".gz")
	if err := writeGzChunk(fullPath, timestamp, live); err != nil {
		return idxerrors.New(idxerrors.ErrCodeSnapshotWrite, "write full snapshot", err)
	}
	written = append(written, fullPath)

	zipPath := filepath.Join(req.TargetDir, IndexFileName+".zip")
	if err := writeZipChunk(zipPath, timestamp, live); err != nil {
		return idxerrors.New(idxerrors.ErrCodeSnapshotWrite, "write legacy snapshot", err)
	}
	written = append(written, zipPath)

	chainID := props[PropChainID]
	reset := chainID == "" ||
		baseline == nil ||
		baseline.ChainID != chainID ||
		baseline.Incarnation != ictx.Incarnation()

	prevTimestamp := time.Time{}
	if ts := props[PropTimestamp]; ts != "" {
		if parsed, perr := time.Parse(index.TimestampLayout, ts); perr == nil {
			prevTimestamp = parsed
		}
	}

	switch {
	case !req.CreateIncrementalChunks:
		if chainID == "" {
			chainID = uuid.NewString()
		}
		clearIncrementals(props)
		props[PropLastIncremental] = "0"
		removeChunks(req.TargetDir, nil)

	case reset:
		chainID = uuid.NewString()
		clearIncrementals(props)
		props[PropLastIncremental] = "0"
		removeChunks(req.TargetDir, nil)
		slog.Info("chain_reset",
			slog.String("id", ictx.ID()),
			slog.String("chain", chainID))

	case !ictx.Timestamp().Truncate(time.Millisecond).After(prevTimestamp):
		// Stale context: full snapshot only, chain untouched. Comparison is
		// at the millisecond precision the properties file carries.

	default:
		newCounter := props.LastIncremental() + 1
		delta := computeDelta(live, tombstones, baseline)
		chunkPath := filepath.Join(req.TargetDir, fmt.Sprintf("%s.%d.gz", IndexFileName, newCounter))
		if err := writeGzChunk(chunkPath, timestamp, delta); err != nil {
			return idxerrors.New(idxerrors.ErrCodeSnapshotWrite, "write incremental chunk", err)
		}
		written = append(written, chunkPath)
		shiftIncrementals(props, newCounter, maxChunks)
		keep := map[int]struct{}{}
		for n := 0; n < maxChunks; n++ {
			if counter := props.Incremental(n); counter >= 0 {
				keep[counter] = struct{}{}
			}
		}
		removeChunks(req.TargetDir, keep)
	}

	props[PropID] = ictx.RepositoryID()
	props[PropTimestamp] = timestamp.Format(index.TimestampLayout)
	props[PropChainID] = chainID

	if err := WriteProperties(propsPath, props); err != nil {
		return idxerrors.New(idxerrors.ErrCodeSnapshotWrite, "write publication properties", err)
	}
	written = append(written, propsPath)

	uinfos := make([]string, 0, len(liveSet))
	for u := range liveSet {
		uinfos = append(uinfos, u)
	}
	if err := WriteBaseline(filepath.Join(req.TargetDir, baselineFileName), &Baseline{
		ChainID:     chainID,
		Incarnation: ictx.Incarnation(),
		UInfos:      uinfos,
	}); err != nil {
		return idxerrors.New(idxerrors.ErrCodeSnapshotWrite, "write pack baseline", err)
	}

	if req.CreateChecksumFiles {
		if err := writeChecksums(ctx, written); err != nil {
			return err
		}
	}

	slog.Info("pack_complete",
		slog.String("id", ictx.ID()),
		slog.String("target", req.TargetDir),
		slog.Int("documents", len(live)),
		slog.String("chain", chainID))
	return nil
}

// computeDelta returns the documents added or changed since the baseline
// plus the tombstones whose target was published in it.
func computeDelta(live, tombstones []schema.Document, baseline *Baseline) []schema.Document {
	published := make(map[string]struct{}, len(baseline.UInfos))
	for _, u := range baseline.UInfos {
		published[u] = struct{}{}
	}

	var delta []schema.Document
	for _, doc := range live {
		if _, ok := published[doc.Get(schema.KeyUInfo)]; !ok {
			delta = append(delta, doc)
		}
	}
	for _, doc := range tombstones {
		if _, ok := published[doc.Get(schema.KeyDeleted)]; ok {
			delta = append(delta, doc)
		}
	}
	return delta
}

// clearIncrementals drops every incremental-<n> key.
func clearIncrementals(props Properties) {
	for k := range props {
		if chunkKeyRe.MatchString(k) {
			delete(props, k)
		}
	}
	delete(props, PropLastIncremental)
}

var chunkKeyRe = regexp.MustCompile(`^nexus\.index\.incremental-[0-9]+$`)

// shiftIncrementals moves every incremental key down one slot, installs the
// new counter at slot zero and trims the chain to maxChunks entries.
func shiftIncrementals(props Properties, newCounter, maxChunks int) {
	old := make([]int, 0, maxChunks)
	for n := 0; ; n++ {
		counter := props.Incremental(n)
		if counter < 0 {
			break
		}
		old = append(old, counter)
	}
	clearIncrementals(props)

	props[fmt.Sprintf(PropIncrementalFmt, 0)] = strconv.Itoa(newCounter)
	for i, counter := range old {
		slot := i + 1
		if slot >= maxChunks {
			break
		}
		props[fmt.Sprintf(PropIncrementalFmt, slot)] = strconv.Itoa(counter)
	}
	props[PropLastIncremental] = strconv.Itoa(newCounter)
}

// removeChunks deletes chunk files whose counter is not in keep; a nil keep
// removes all of them.
func removeChunks(dir string, keep map[int]struct{}) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		m := chunkFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		counter, _ := strconv.Atoi(m[1])
		if keep != nil {
			if _, ok := keep[counter]; ok {
				continue
			}
		}
		_ = os.Remove(filepath.Join(dir, e.Name()))
	}
}

// writeGzChunk writes one v1 stream compressed with gzip.
func writeGzChunk(path string, timestamp time.Time, docs []schema.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	gz := gzip.NewWriter(f)
	if err := WriteChunk(gz, timestamp, docs); err != nil {
		_ = f.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeZipChunk writes the legacy zip: one uncompressed entry carrying the
// identical v1 stream.
func writeZipChunk(path string, timestamp time.Time, docs []schema.Document) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	entry, err := zw.CreateHeader(&zip.FileHeader{Name: IndexFileName, Method: zip.Store})
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := WriteChunk(entry, timestamp, docs); err != nil {
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeChecksums emits .sha1/.md5 siblings for every published file.
func writeChecksums(ctx context.Context, paths []string) error {
	g, _ := errgroup.WithContext(ctx)
	for _, path := range paths {
		g.Go(func() error {
			if err := writeDigest(path+".sha1", path, sha1.New()); err != nil {
				return err
			}
			return writeDigest(path+".md5", path, md5.New())
		})
	}
	if err := g.Wait(); err != nil {
		return idxerrors.New(idxerrors.ErrCodeSnapshotWrite, "write checksums", err)
	}
	return nil
}

// writeDigest hashes src and writes the hex digest to dst.
func writeDigest(dst, src string, h hash.Hash) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte(hex.EncodeToString(h.Sum(nil))+"\n"), 0o644)
}
