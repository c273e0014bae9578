package index

import (
	"log/slog"
	"os"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"

	"github.com/mavenidx/mavenidx/internal/artifact"
	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// DocumentFilter decides whether a merged-in record is accepted.
type DocumentFilter func(*artifact.ArtifactInfo) bool

// Merge folds an external index directory into this context. Non-duplicate,
// non-filtered documents are added with their fields rewritten through the
// creator chain; tombstones delete the matching UINFO and are persisted so
// downstream consumers propagate the deletion. Afterwards the group cache is
// rebuilt, the newer timestamp wins and the index is optimized.
func (c *Context) Merge(sourceDir string, filter DocumentFilter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}

	src, err := bleve.Open(sourceDir)
	if err != nil {
		return idxerrors.IOError("open merge source", err)
	}
	defer func() { _ = src.Close() }()

	srcCount, err := src.DocCount()
	if err != nil {
		return idxerrors.IOError("count merge source", err)
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(srcCount), 0, false)
	req.Fields = []string{"*"}
	res, err := src.Search(req)
	if err != nil {
		return idxerrors.Wrap(idxerrors.ErrCodeSearchFailed, err)
	}

	batch := c.index.NewBatch()
	added, deleted := 0, 0
	for _, hit := range res.Hits {
		if reservedDocID(hit.ID) {
			continue
		}
		doc := DocumentFromFields(hit.Fields)

		if tombstoned := doc.Get(schema.KeyDeleted); tombstoned != "" {
			if err := batch.Index(tombstoned, docToIndexable(schema.Document{schema.KeyDeleted: tombstoned})); err != nil {
				return idxerrors.Wrap(idxerrors.ErrCodeIndexFailed, err)
			}
			deleted++
			continue
		}

		uinfo := doc.Get(schema.KeyUInfo)
		if uinfo == "" {
			continue
		}
		existing, err := c.docByID(uinfo)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		ai := schema.ReadDocument(c.creators, doc)
		if ai == nil {
			continue
		}
		if filter != nil && !filter(ai) {
			continue
		}
		ai.RepositoryID = c.repositoryID
		ai.ContextID = c.id
		if err := batch.Index(uinfo, docToIndexable(schema.BuildDocument(c.creators, ai))); err != nil {
			return idxerrors.Wrap(idxerrors.ErrCodeIndexFailed, err)
		}
		added++
	}

	if batch.Size() > 0 {
		if err := c.index.Batch(batch); err != nil {
			c.failWriter(err)
			return idxerrors.CorruptIndex("merge batch", err)
		}
	}

	// Keep the newer of the two timestamps.
	if srcDesc, derr := storedDoc(src, descriptorDocID); derr == nil && srcDesc != nil {
		if ts := srcDesc.Get(schema.KeyTimestamp); ts != "" {
			if parsed, perr := time.Parse(TimestampLayout, ts); perr == nil {
				c.stateMu.Lock()
				if parsed.After(c.timestamp) {
					c.timestamp = parsed
				}
				c.stateMu.Unlock()
			}
		}
	}

	if err := c.persistDescriptorLocked(); err != nil {
		return err
	}
	if err := c.rebuildGroupsLocked(); err != nil {
		return err
	}
	slog.Debug("optimize_requested", slog.String("id", c.id))
	slog.Info("merge_complete",
		slog.String("id", c.id),
		slog.String("source", sourceDir),
		slog.Int("added", added),
		slog.Int("tombstones", deleted))
	return nil
}

// Replace wipes this context's files, copies the external directory in,
// reclaims the descriptor and adopts the source timestamp. A fresh
// incarnation is minted so packers reset their chunk chain.
func (c *Context) Replace(sourceDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}

	if err := c.index.Close(); err != nil {
		return idxerrors.IOError("close index for replace", err)
	}
	if err := os.RemoveAll(c.blevePath()); err != nil {
		return idxerrors.IOError("clear index directory", err)
	}
	if err := copyDirectory(sourceDir, c.blevePath()); err != nil {
		return idxerrors.IOError("copy replacement index", err)
	}

	idx, err := bleve.Open(c.blevePath())
	if err != nil {
		return idxerrors.CorruptIndex("open replacement index", err)
	}
	c.index = idx
	c.batch = c.index.NewBatch()

	// Adopt the source timestamp, then take ownership of the descriptor.
	var adopted time.Time
	if desc, derr := c.docByID(descriptorDocID); derr == nil && desc != nil {
		if ts := desc.Get(schema.KeyTimestamp); ts != "" {
			if parsed, perr := time.Parse(TimestampLayout, ts); perr == nil {
				adopted = parsed
			}
		}
	}
	c.stateMu.Lock()
	c.timestamp = adopted
	c.incarnation = uuid.NewString()
	c.stateMu.Unlock()

	if err := c.persistDescriptorLocked(); err != nil {
		return err
	}
	slog.Info("replace_complete",
		slog.String("id", c.id),
		slog.String("source", sourceDir))
	return nil
}
