package index

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// descriptorVersion is the index format generation written into IDXINFO.
// Unknown versions are rejected on open.
const descriptorVersion = "1"

// validateDescriptor enforces the single-descriptor contract on open: a
// non-empty directory must carry a descriptor whose repository id and
// version match, unless reclaim rewrites it. Fresh directories get a new
// descriptor with a minted incarnation.
func (c *Context) validateDescriptor(reclaim bool) error {
	count, err := c.index.DocCount()
	if err != nil {
		return idxerrors.CorruptIndex("count documents", err)
	}

	if count == 0 {
		c.incarnation = uuid.NewString()
		return c.persistDescriptorLocked()
	}

	doc, err := c.docByID(descriptorDocID)
	if err != nil {
		return err
	}
	if doc == nil || doc.Get(schema.KeyDescriptor) != schema.DescriptorValue {
		if !reclaim {
			return idxerrors.UnsupportedIndex(
				fmt.Sprintf("index at %s has documents but no descriptor", c.dir))
		}
		c.incarnation = uuid.NewString()
		return c.persistDescriptorLocked()
	}

	version, repositoryID, ok := parseIdxInfo(doc.Get(schema.KeyIdxInfo))
	switch {
	case !ok, version != descriptorVersion:
		if !reclaim {
			return idxerrors.UnsupportedIndex(
				fmt.Sprintf("index at %s has unsupported descriptor %q", c.dir, doc.Get(schema.KeyIdxInfo)))
		}
	case repositoryID != c.repositoryID:
		if !reclaim {
			return idxerrors.UnsupportedIndex(
				fmt.Sprintf("index at %s belongs to repository %q, not %q", c.dir, repositoryID, c.repositoryID))
		}
	}

	if ts := doc.Get(schema.KeyTimestamp); ts != "" {
		if parsed, perr := time.Parse(TimestampLayout, ts); perr == nil {
			c.timestamp = parsed
		}
	}
	c.incarnation = doc.Get(schema.KeyIncarnation)
	if c.incarnation == "" {
		c.incarnation = uuid.NewString()
	}

	// Reclaimed or matched, the stored descriptor is rewritten as ours.
	return c.persistDescriptorLocked()
}

// persistDescriptorLocked writes the descriptor document outside the batch
// so the stored timestamp always reflects the committed state.
// Caller holds a lease.
func (c *Context) persistDescriptorLocked() error {
	c.stateMu.Lock()
	ts := c.timestamp
	inc := c.incarnation
	c.stateMu.Unlock()

	doc := schema.Document{
		schema.KeyDescriptor:  schema.DescriptorValue,
		schema.KeyIdxInfo:     descriptorVersion + "|" + c.repositoryID,
		schema.KeyIncarnation: inc,
	}
	if !ts.IsZero() {
		doc[schema.KeyTimestamp] = ts.Format(TimestampLayout)
	}
	if err := c.index.Index(descriptorDocID, docToIndexable(doc)); err != nil {
		return idxerrors.IOError("persist descriptor", err)
	}
	return nil
}

// parseIdxInfo splits "<version>|<repositoryId>".
func parseIdxInfo(s string) (version, repositoryID string, ok bool) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
