package search

import (
	"context"
	"log/slog"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/mavenidx/mavenidx/internal/artifact"
	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// LimitExceeded is the sentinel total returned when a flat search overruns
// its hit limit. It is distinct from any natural count and is not an error.
const LimitExceeded = -1

// FlatRequest describes a flat, UINFO-ordered search.
type FlatRequest struct {
	Query query.Query
	// Start and Count are advisory paging bounds; zero Count means all.
	Start int
	Count int
	// ResultHitLimit caps the cumulative hit count; zero means unlimited.
	ResultHitLimit int
	// Comparator orders the result set; nil means UINFO ascending.
	Comparator artifact.Comparator
}

// FlatResponse is the result of a flat search.
type FlatResponse struct {
	// TotalHits is the cumulative hit count, or LimitExceeded.
	TotalHits int
	// Results is ordered and deduplicated by (repositoryId, UINFO).
	Results *artifact.InfoSet
}

// GroupedRequest describes a grouped search.
type GroupedRequest struct {
	Query    query.Query
	Grouping Grouping
}

// Engine executes searches over one or many contexts. Contexts are visited
// in the order given; the force variants override each context's
// searchable flag.
type Engine struct{}

// NewEngine creates a search engine.
func NewEngine() *Engine {
	return &Engine{}
}

// FlatSearch runs a flat search over the searchable contexts.
func (e *Engine) FlatSearch(ctx context.Context, req FlatRequest, contexts ...*index.Context) (*FlatResponse, error) {
	return e.flat(ctx, req, false, contexts)
}

// ForceFlatSearch runs a flat search over all contexts, searchable or not.
func (e *Engine) ForceFlatSearch(ctx context.Context, req FlatRequest, contexts ...*index.Context) (*FlatResponse, error) {
	return e.flat(ctx, req, true, contexts)
}

func (e *Engine) flat(ctx context.Context, req FlatRequest, force bool, contexts []*index.Context) (*FlatResponse, error) {
	results := artifact.NewInfoSet(req.Comparator)
	total := 0

	for _, ictx := range contexts {
		if !force && !ictx.Searchable() {
			continue
		}
		size := 0
		if req.Count > 0 {
			size = req.Start + req.Count
		}
		hits, contextTotal, err := e.searchContext(ctx, ictx, req.Query, size, "_id")
		if err != nil {
			return nil, err
		}
		total += contextTotal
		if req.ResultHitLimit > 0 && total > req.ResultHitLimit {
			slog.Debug("hit_limit_exceeded",
				slog.Int("limit", req.ResultHitLimit),
				slog.Int("total", total))
			return &FlatResponse{TotalHits: LimitExceeded, Results: artifact.NewInfoSet(req.Comparator)}, nil
		}
		for _, ai := range hits {
			results.Add(ai)
		}
	}

	return &FlatResponse{TotalHits: total, Results: results}, nil
}

// GroupedSearch folds every hit into groups via the supplied Grouping.
// The returned count includes only accepted hits.
func (e *Engine) GroupedSearch(ctx context.Context, req GroupedRequest, contexts ...*index.Context) (map[string]*ArtifactInfoGroup, int, error) {
	return e.grouped(ctx, req, false, contexts)
}

// ForceGroupedSearch is GroupedSearch ignoring the searchable flag.
func (e *Engine) ForceGroupedSearch(ctx context.Context, req GroupedRequest, contexts ...*index.Context) (map[string]*ArtifactInfoGroup, int, error) {
	return e.grouped(ctx, req, true, contexts)
}

func (e *Engine) grouped(ctx context.Context, req GroupedRequest, force bool, contexts []*index.Context) (map[string]*ArtifactInfoGroup, int, error) {
	result := make(map[string]*ArtifactInfoGroup)
	accepted := 0

	for _, ictx := range contexts {
		if !force && !ictx.Searchable() {
			continue
		}
		hits, _, err := e.searchContext(ctx, ictx, req.Query, 0, "_id")
		if err != nil {
			return nil, 0, err
		}
		for _, ai := range hits {
			if req.Grouping.Put(result, ai) {
				accepted++
			}
		}
	}
	return result, accepted, nil
}

// searchContext executes one query against one context under its shared
// lock and materialises the recognised hits. size 0 fetches everything.
func (e *Engine) searchContext(ctx context.Context, ictx *index.Context, q query.Query, size int, sortBy string) ([]*artifact.ArtifactInfo, int, error) {
	ictx.Lock()
	defer ictx.Unlock()

	if size <= 0 {
		count, err := ictx.Index().DocCount()
		if err != nil {
			return nil, 0, idxerrors.IOError("doc count", err)
		}
		size = int(count)
	}

	req := bleve.NewSearchRequestOptions(q, size, 0, false)
	req.Fields = []string{"*"}
	req.SortBy([]string{sortBy})
	res, err := ictx.Index().SearchInContext(ctx, req)
	if err != nil {
		return nil, 0, idxerrors.Wrap(idxerrors.ErrCodeSearchFailed, err)
	}

	infos := make([]*artifact.ArtifactInfo, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ai := schema.ReadDocument(ictx.Creators(), index.DocumentFromFields(hit.Fields))
		if ai == nil {
			// Descriptor, group and tombstone documents are not results.
			continue
		}
		ai.RepositoryID = ictx.RepositoryID()
		ai.ContextID = ictx.ID()
		infos = append(infos, ai)
	}
	return infos, int(res.Total), nil
}
