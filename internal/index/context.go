package index

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	index "github.com/blevesearch/bleve_index_api"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/mavenidx/mavenidx/internal/artifact"
	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// TimestampLayout renders index timestamps (yyyyMMddHHmmss.SSS Z).
const TimestampLayout = "20060102150405.000 -0700"

// Reserved document IDs. Everything else is keyed by UINFO.
const (
	descriptorDocID = "DESCRIPTOR"
	allGroupsDocID  = "allGroups"
	rootGroupsDocID = "rootGroups"
)

// lockFileName is the process-level lock inside the index directory.
const lockFileName = "write.lock"

// reservedDocID reports whether id belongs to a bookkeeping document.
func reservedDocID(id string) bool {
	return id == descriptorDocID || id == allGroupsDocID || id == rootGroupsDocID
}

// Options configure an IndexingContext open.
type Options struct {
	// ID names the context.
	ID string
	// RepositoryID is the repository this index belongs to.
	RepositoryID string
	// RepositoryPath is the local repository root being indexed.
	RepositoryPath string
	// RepositoryURL is the public URL of the repository, if any.
	RepositoryURL string
	// IndexUpdateURL is where peers download published snapshots from.
	IndexUpdateURL string
	// IndexDir is the on-disk index directory.
	IndexDir string
	// Creators is the ordered creator chain; nil means the default set.
	Creators []schema.IndexCreator
	// Reclaim accepts a foreign or missing descriptor and rewrites it.
	Reclaim bool
	// Searchable marks the context visible to non-forced searches.
	Searchable bool
}

// Context is the stateful handle owning one inverted index directory, its
// writer (a pending batch) and its searcher. At most one writer exists; the
// pending batch is invisible to searches until Commit executes it.
type Context struct {
	id             string
	repositoryID   string
	repositoryPath string
	repositoryURL  string
	indexUpdateURL string
	dir            string
	gavCalc        artifact.M2GavCalculator
	creators       []schema.IndexCreator

	// mu guards the reader/writer/searcher triple. Shared holders may
	// search and feed the writer; exclusive holders may replace the triple.
	mu sync.RWMutex

	// writerMu serialises access to the pending batch so the writer itself
	// is safe under concurrent shared holders.
	writerMu sync.Mutex

	// stateMu guards the scalar state mutated by shared operations
	// (commit advances the timestamp, a failed commit closes the context).
	stateMu     sync.Mutex
	timestamp   time.Time
	incarnation string
	searchable  bool
	closed      bool

	fl    *flock.Flock
	index bleve.Index
	batch *bleve.Batch
}

// Open opens or creates the index directory, acquires the process lock and
// validates the descriptor document.
func Open(opts Options) (*Context, error) {
	if opts.IndexDir == "" {
		return nil, idxerrors.ValidationError("index directory is required", nil)
	}
	if err := os.MkdirAll(opts.IndexDir, 0o755); err != nil {
		return nil, idxerrors.IOError("create index directory", err)
	}

	fl := flock.New(filepath.Join(opts.IndexDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, idxerrors.IOError("acquire index directory lock", err)
	}
	if !locked {
		return nil, idxerrors.New(idxerrors.ErrCodeDirectoryLock,
			fmt.Sprintf("index directory %s is locked by another process", opts.IndexDir), nil)
	}

	creators := opts.Creators
	if creators == nil {
		creators = schema.DefaultCreators()
	}

	ctx := &Context{
		id:             opts.ID,
		repositoryID:   opts.RepositoryID,
		repositoryPath: opts.RepositoryPath,
		repositoryURL:  opts.RepositoryURL,
		indexUpdateURL: opts.IndexUpdateURL,
		dir:            opts.IndexDir,
		creators:       creators,
		fl:             fl,
		searchable:     opts.Searchable,
	}

	if err := ctx.openIndex(); err != nil {
		_ = fl.Unlock()
		return nil, err
	}
	if err := ctx.validateDescriptor(opts.Reclaim); err != nil {
		_ = ctx.index.Close()
		_ = fl.Unlock()
		return nil, err
	}
	ctx.batch = ctx.index.NewBatch()

	slog.Debug("context_opened",
		slog.String("id", ctx.id),
		slog.String("repository", ctx.repositoryID),
		slog.String("dir", ctx.dir))
	return ctx, nil
}

// openIndex opens the bleve directory, creating it when absent.
func (c *Context) openIndex() error {
	bleveDir := c.blevePath()
	idx, err := bleve.Open(bleveDir)
	if err == bleve.ErrorIndexPathDoesNotExist {
		m, merr := buildIndexMapping()
		if merr != nil {
			return idxerrors.InternalError("build index mapping", merr)
		}
		idx, err = bleve.New(bleveDir, m)
	} else if err != nil {
		return idxerrors.CorruptIndex(fmt.Sprintf("open index at %s", bleveDir), err)
	}
	if err != nil {
		return idxerrors.IOError("create index", err)
	}
	c.index = idx
	return nil
}

// blevePath returns the segment store location under the index directory.
func (c *Context) blevePath() string {
	return filepath.Join(c.dir, "index")
}

// ID returns the context id.
func (c *Context) ID() string { return c.id }

// RepositoryID returns the owning repository id.
func (c *Context) RepositoryID() string { return c.repositoryID }

// RepositoryPath returns the local repository root.
func (c *Context) RepositoryPath() string { return c.repositoryPath }

// RepositoryURL returns the public repository URL.
func (c *Context) RepositoryURL() string { return c.repositoryURL }

// IndexUpdateURL returns the snapshot publication URL.
func (c *Context) IndexUpdateURL() string { return c.indexUpdateURL }

// IndexDir returns the index directory.
func (c *Context) IndexDir() string { return c.dir }

// GavCalculator returns the layout calculator of this context.
func (c *Context) GavCalculator() artifact.M2GavCalculator { return c.gavCalc }

// Creators returns the ordered creator chain.
func (c *Context) Creators() []schema.IndexCreator { return c.creators }

// Searchable reports whether non-forced searches include this context.
func (c *Context) Searchable() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.searchable
}

// SetSearchable flips the searchable flag.
func (c *Context) SetSearchable(v bool) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	c.searchable = v
}

// Timestamp returns the wall clock of the last committed update.
func (c *Context) Timestamp() time.Time {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.timestamp
}

// UpdateTimestamp sets the context timestamp; nil resets it.
func (c *Context) UpdateTimestamp(t *time.Time) {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if t == nil {
		c.timestamp = time.Time{}
	} else {
		c.timestamp = *t
	}
}

// Incarnation identifies the current index baseline; purge and replace mint
// a fresh one, which forces packers to reset their chunk chain.
func (c *Context) Incarnation() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.incarnation
}

// isClosed reports the closed flag.
func (c *Context) isClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}

// setClosed flips the closed flag, returning the previous value.
func (c *Context) setClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	was := c.closed
	c.closed = true
	return was
}

// Lock acquires the shared lease.
func (c *Context) Lock() { c.mu.RLock() }

// Unlock releases the shared lease.
func (c *Context) Unlock() { c.mu.RUnlock() }

// LockExclusively acquires the exclusive lease.
func (c *Context) LockExclusively() { c.mu.Lock() }

// UnlockExclusively releases the exclusive lease.
func (c *Context) UnlockExclusively() { c.mu.Unlock() }

// Index hands out the searcher. Callers must hold the shared lease for the
// duration of use.
func (c *Context) Index() bleve.Index { return c.index }

// IndexArtifactContext populates ac through the creator chain and stages
// the merged document on the writer.
func (c *Context) IndexArtifactContext(ac *artifact.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}

	schema.PopulateAll(c.creators, ac)
	ac.Info.ContextID = c.id
	return c.stage(ac.Info)
}

// AddArtifactInfo stages an already-populated record on the writer.
func (c *Context) AddArtifactInfo(ai *artifact.ArtifactInfo) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.stage(ai)
}

// stage writes ai's merged document into the pending batch.
// Caller holds at least the shared lease.
func (c *Context) stage(ai *artifact.ArtifactInfo) error {
	ai.RepositoryID = c.repositoryID
	doc := schema.BuildDocument(c.creators, ai)
	c.writerMu.Lock()
	defer c.writerMu.Unlock()
	if err := c.batch.Index(ai.UInfo(), docToIndexable(doc)); err != nil {
		return idxerrors.Wrap(idxerrors.ErrCodeIndexFailed, err)
	}
	return nil
}

// DeleteArtifact stages a tombstone for the given UINFO, replacing any live
// document with that key.
func (c *Context) DeleteArtifact(uinfo string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.stageTombstone(uinfo)
}

// stageTombstone writes the tombstone document under the shared lease.
func (c *Context) stageTombstone(uinfo string) error {
	doc := schema.Document{schema.KeyDeleted: uinfo}
	c.writerMu.Lock()
	defer c.writerMu.Unlock()
	if err := c.batch.Index(uinfo, docToIndexable(doc)); err != nil {
		return idxerrors.Wrap(idxerrors.ErrCodeIndexFailed, err)
	}
	return nil
}

// Commit executes the pending batch and advances the timestamp. Readers are
// refreshed opportunistically afterwards.
func (c *Context) Commit() error {
	if err := c.commitShared(); err != nil {
		return err
	}
	c.openAndWarmupReaders()
	return nil
}

// commitShared flushes the writer under the shared lease.
func (c *Context) commitShared() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}

	c.writerMu.Lock()
	defer c.writerMu.Unlock()
	if c.batch.Size() > 0 {
		if err := c.index.Batch(c.batch); err != nil {
			c.failWriter(err)
			return idxerrors.CorruptIndex("commit batch", err)
		}
		c.batch.Reset()
		now := time.Now()
		c.stateMu.Lock()
		c.timestamp = now
		c.stateMu.Unlock()
	}
	return c.persistDescriptorLocked()
}

// failWriter drops the context into the closed state after a mid-commit
// failure; visible state stays whatever was already committed.
func (c *Context) failWriter(err error) {
	slog.Error("commit_failed",
		slog.String("id", c.id),
		slog.String("error", err.Error()))
	if !c.setClosed() {
		_ = c.index.Close()
	}
}

// openAndWarmupReaders tries a non-blocking exclusive upgrade and, when it
// wins, issues a warm-up query against the committed directory.
func (c *Context) openAndWarmupReaders() {
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()
	if c.isClosed() {
		return
	}
	c.warmup()
}

// warmup populates searcher caches. Caller holds the exclusive lease.
func (c *Context) warmup() {
	q := bleve.NewMatchQuery("org")
	q.SetField("groupId")
	q.Analyzer = AnalyzerName
	req := bleve.NewSearchRequestOptions(q, 1, 0, false)
	if _, err := c.index.Search(req); err != nil {
		slog.Debug("warmup_failed", slog.String("id", c.id), slog.String("error", err.Error()))
	}
}

// Rollback discards uncommitted changes.
func (c *Context) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	c.writerMu.Lock()
	defer c.writerMu.Unlock()
	c.batch.Reset()
	return nil
}

// Optimize compacts the index and commits. The scorch backend merges
// segments continuously, so the compaction request reduces to a flush.
func (c *Context) Optimize() error {
	if err := c.commitShared(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	slog.Debug("optimize_requested", slog.String("id", c.id))
	return nil
}

// Purge deletes every document, restores the descriptor and rebuilds the
// (now empty) group cache. The timestamp is reset and a fresh incarnation
// is minted so packers reset their chain.
func (c *Context) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}

	ids, err := c.allDocIDsLocked()
	if err != nil {
		return err
	}
	c.writerMu.Lock()
	c.batch.Reset()
	for _, id := range ids {
		c.batch.Delete(id)
	}
	err = c.index.Batch(c.batch)
	c.batch.Reset()
	c.writerMu.Unlock()
	if err != nil {
		c.failWriter(err)
		return idxerrors.CorruptIndex("purge", err)
	}

	c.stateMu.Lock()
	c.timestamp = time.Time{}
	c.incarnation = uuid.NewString()
	c.stateMu.Unlock()
	if err := c.persistDescriptorLocked(); err != nil {
		return err
	}
	return c.rebuildGroupsLocked()
}

// Close flushes the writer, persists the timestamp, releases the process
// lock and optionally deletes the index files.
func (c *Context) Close(deleteFiles bool) error {
	if err := c.commitShared(); err != nil &&
		idxerrors.GetCode(err) != idxerrors.ErrCodeContextClosed {
		slog.Warn("close_flush_failed", slog.String("id", c.id), slog.String("error", err.Error()))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	var closeErr error
	if !c.setClosed() {
		closeErr = c.index.Close()
	}
	if err := c.fl.Unlock(); err != nil && closeErr == nil {
		closeErr = err
	}
	if deleteFiles {
		if err := os.RemoveAll(c.dir); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	if closeErr != nil {
		return idxerrors.IOError("close context", closeErr)
	}
	return nil
}

// allDocIDsLocked lists every document id. Caller holds a lease.
func (c *Context) allDocIDsLocked() ([]string, error) {
	count, err := c.index.DocCount()
	if err != nil {
		return nil, idxerrors.IOError("doc count", err)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := c.index.Search(req)
	if err != nil {
		return nil, idxerrors.Wrap(idxerrors.ErrCodeSearchFailed, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// AllDocuments returns every document with its stored fields, reserved
// bookkeeping documents excluded. Tombstones are included.
func (c *Context) AllDocuments() ([]schema.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return nil, idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.allDocumentsLocked()
}

// allDocumentsLocked implements AllDocuments under a held lease.
func (c *Context) allDocumentsLocked() ([]schema.Document, error) {
	count, err := c.index.DocCount()
	if err != nil {
		return nil, idxerrors.IOError("doc count", err)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	req.Fields = []string{"*"}
	res, err := c.index.Search(req)
	if err != nil {
		return nil, idxerrors.Wrap(idxerrors.ErrCodeSearchFailed, err)
	}
	docs := make([]schema.Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if reservedDocID(hit.ID) {
			continue
		}
		docs = append(docs, DocumentFromFields(hit.Fields))
	}
	return docs, nil
}

// docByID fetches the stored fields of one document, or nil when absent.
// Caller holds a lease.
func (c *Context) docByID(id string) (schema.Document, error) {
	return storedDoc(c.index, id)
}

// StoredDocument fetches the stored fields of one document, or nil when it
// does not exist. Callers must hold the shared lease.
func (c *Context) StoredDocument(id string) (schema.Document, error) {
	return storedDoc(c.index, id)
}

// storedDoc fetches the stored fields of one document from any index.
func storedDoc(idx bleve.Index, id string) (schema.Document, error) {
	raw, err := idx.Document(id)
	if err != nil {
		return nil, idxerrors.IOError("fetch document", err)
	}
	if raw == nil {
		return nil, nil
	}
	doc := schema.Document{}
	raw.VisitFields(func(f index.Field) {
		doc[f.Name()] = string(f.Value())
	})
	if len(doc) == 0 {
		return nil, nil
	}
	return doc, nil
}

// DocumentFromFields converts bleve stored fields to a schema.Document.
func DocumentFromFields(fields map[string]interface{}) schema.Document {
	doc := schema.Document{}
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			doc[k] = val
		case []interface{}:
			if len(val) > 0 {
				if s, ok := val[0].(string); ok {
					doc[k] = s
				}
			}
		}
	}
	return doc
}

// docToIndexable converts a schema.Document to the bleve input form.
func docToIndexable(doc schema.Document) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// copyDirectory copies the regular files of src into dst.
func copyDirectory(src, dst string) error {
	return filepath.Walk(src, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if fi.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !fi.Mode().IsRegular() {
			return nil
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fi.Mode().Perm())
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			_ = out.Close()
			return err
		}
		return out.Close()
	})
}
