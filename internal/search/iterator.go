package search

import (
	"context"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mavenidx/mavenidx/internal/artifact"
	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// IteratorRequest describes a streaming search.
type IteratorRequest struct {
	Query query.Query
	// Start skips the first n pinned hits; Count bounds the yields, zero = all.
	Start int
	Count int
	// Force overrides the searchable flag of each context.
	Force bool
}

// hitRef points at one matched document inside a held context.
type hitRef struct {
	ctx *index.Context
	id  string
}

// Iterator is a single-pass cursor over search results ordered by
// (score desc, doc id asc) within each context. The hit set is pinned at
// construction, so documents committed afterwards never surface; documents
// are materialised lazily, one per Next call. The cursor holds the shared
// lock of every participating context until Close.
type Iterator struct {
	contexts []*index.Context
	hits     []hitRef
	pos      int
	remain   int // remaining yields, -1 = unbounded
	closed   bool
}

// IteratorSearch constructs a streaming search over the given contexts.
// The shared lock of every participating context is held by the returned
// iterator; on construction failure every lock is released.
func (e *Engine) IteratorSearch(ctx context.Context, req IteratorRequest, contexts ...*index.Context) (*Iterator, error) {
	var participating []*index.Context
	for _, ictx := range contexts {
		if !req.Force && !ictx.Searchable() {
			continue
		}
		participating = append(participating, ictx)
	}

	for _, ictx := range participating {
		ictx.Lock()
	}
	release := func() {
		for _, ictx := range participating {
			ictx.Unlock()
		}
	}

	var hits []hitRef
	for _, ictx := range participating {
		count, err := ictx.Index().DocCount()
		if err != nil {
			release()
			return nil, idxerrors.IOError("doc count", err)
		}
		breq := bleve.NewSearchRequestOptions(req.Query, int(count), 0, false)
		breq.SortBy([]string{"-_score", "_id"})
		res, err := ictx.Index().SearchInContext(ctx, breq)
		if err != nil {
			release()
			return nil, idxerrors.Wrap(idxerrors.ErrCodeSearchFailed, err)
		}
		for _, hit := range res.Hits {
			hits = append(hits, hitRef{ctx: ictx, id: hit.ID})
		}
	}

	remain := -1
	if req.Count > 0 {
		remain = req.Count
	}
	return &Iterator{
		contexts: participating,
		hits:     hits,
		pos:      req.Start,
		remain:   remain,
	}, nil
}

// Next returns the next result, or (nil, nil) when the cursor is
// exhausted. The cursor is single-pass.
func (it *Iterator) Next() (*artifact.ArtifactInfo, error) {
	if it.closed {
		return nil, idxerrors.New(idxerrors.ErrCodeSearchFailed, "iterator is closed", nil)
	}
	for it.remain != 0 && it.pos < len(it.hits) {
		ref := it.hits[it.pos]
		it.pos++

		doc, err := ref.ctx.StoredDocument(ref.id)
		if err != nil {
			it.Close()
			return nil, err
		}
		if doc == nil {
			continue
		}
		ai := schema.ReadDocument(ref.ctx.Creators(), doc)
		if ai == nil {
			continue
		}
		ai.RepositoryID = ref.ctx.RepositoryID()
		ai.ContextID = ref.ctx.ID()
		if it.remain > 0 {
			it.remain--
		}
		return ai, nil
	}
	return nil, nil
}

// Close releases every held context lock. Safe to call more than once.
func (it *Iterator) Close() {
	if it.closed {
		return
	}
	it.closed = true
	for _, ictx := range it.contexts {
		ictx.Unlock()
	}
}
