package index

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/mavenidx/mavenidx/internal/artifact"
	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// The group cache: two string sets persisted as single documents under
// reserved IDs, each holding a unit-separator-joined list. Reads are O(1),
// rebuild is O(live documents).

// GetAllGroups returns every groupId seen in the index.
func (c *Context) GetAllGroups() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return nil, idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.groupsLocked(allGroupsDocID)
}

// GetRootGroups returns the first path segment of every groupId.
func (c *Context) GetRootGroups() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return nil, idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.groupsLocked(rootGroupsDocID)
}

// SetAllGroups replaces the persisted all-groups set.
func (c *Context) SetAllGroups(groups []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.setGroupsLocked(allGroupsDocID, groups)
}

// SetRootGroups replaces the persisted root-groups set.
func (c *Context) SetRootGroups(groups []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.setGroupsLocked(rootGroupsDocID, groups)
}

// RebuildGroups scans every live document and rewrites both group sets.
func (c *Context) RebuildGroups() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return idxerrors.New(idxerrors.ErrCodeContextClosed, "context is closed", nil)
	}
	return c.rebuildGroupsLocked()
}

// rebuildGroupsLocked implements RebuildGroups under the exclusive lease.
func (c *Context) rebuildGroupsLocked() error {
	docs, err := c.allDocumentsLocked()
	if err != nil {
		return err
	}

	all := map[string]struct{}{}
	roots := map[string]struct{}{}
	for _, doc := range docs {
		if !doc.Has(schema.KeyUInfo) || doc.Has(schema.KeyDeleted) {
			continue
		}
		ai := &artifact.ArtifactInfo{}
		if !ai.SetFieldsFromUInfo(doc.Get(schema.KeyUInfo)) {
			continue
		}
		all[ai.GroupID] = struct{}{}
		roots[ai.RootGroup()] = struct{}{}
	}

	if err := c.setGroupsLocked(allGroupsDocID, setToSlice(all)); err != nil {
		return err
	}
	if err := c.setGroupsLocked(rootGroupsDocID, setToSlice(roots)); err != nil {
		return err
	}
	slog.Debug("groups_rebuilt",
		slog.String("id", c.id),
		slog.Int("all", len(all)),
		slog.Int("roots", len(roots)))
	return nil
}

// groupsLocked loads one persisted group set.
func (c *Context) groupsLocked(docID string) ([]string, error) {
	doc, err := c.docByID(docID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	list := doc.Get(schema.KeyGroupList)
	if list == "" {
		return nil, nil
	}
	return strings.Split(list, artifact.FS), nil
}

// setGroupsLocked persists one group set as a single document.
func (c *Context) setGroupsLocked(docID string, groups []string) error {
	doc := schema.Document{
		schema.KeyGroupList: strings.Join(groups, artifact.FS),
	}
	if err := c.index.Index(docID, docToIndexable(doc)); err != nil {
		return idxerrors.IOError("persist groups", err)
	}
	return nil
}

// setToSlice returns the sorted members of a string set.
func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}
