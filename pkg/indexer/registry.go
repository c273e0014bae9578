package indexer

import (
	"context"
	"log/slog"

	"github.com/mavenidx/mavenidx/internal/artifact"
	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/packer"
	"github.com/mavenidx/mavenidx/internal/scanner"
	"github.com/mavenidx/mavenidx/internal/schema"
	"github.com/mavenidx/mavenidx/internal/search"
)

// Registry holds the constructed core components.
type Registry struct {
	Creators     []schema.IndexCreator
	QueryCreator *search.QueryCreator
	SearchEngine *search.Engine
	IndexPacker  *packer.Packer
	Scanner      *scanner.Scanner
}

// NewRegistry constructs the default component set.
func NewRegistry() (*Registry, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}
	return &Registry{
		Creators:     schema.DefaultCreators(),
		QueryCreator: search.NewQueryCreator(),
		SearchEngine: search.NewEngine(),
		IndexPacker:  packer.NewPacker(),
		Scanner:      sc,
	}, nil
}

// OpenContext opens an indexing context wired to this registry's creator
// chain when the options carry none.
func (r *Registry) OpenContext(opts index.Options) (*index.Context, error) {
	if opts.Creators == nil {
		opts.Creators = r.Creators
	}
	return index.Open(opts)
}

// IndexRepository scans the context's repository root and indexes every
// discovered artifact, committing at the end. Returns the indexed count.
func (r *Registry) IndexRepository(ctx context.Context, ictx *index.Context) (int, error) {
	results, err := r.Scanner.Scan(ctx, ictx.RepositoryPath(), scanner.Options{
		RepositoryID: ictx.RepositoryID(),
	})
	if err != nil {
		return 0, err
	}

	indexed := 0
	for res := range results {
		if res.Err != nil {
			slog.Debug("scan_skip",
				slog.String("path", res.Path),
				slog.String("reason", res.Err.Error()))
			continue
		}
		if err := ictx.IndexArtifactContext(res.Context); err != nil {
			return indexed, err
		}
		indexed++
	}
	if err := ictx.Commit(); err != nil {
		return indexed, err
	}
	if err := ictx.RebuildGroups(); err != nil {
		return indexed, err
	}
	return indexed, nil
}

// IdentifyBySHA1 finds the artifacts whose content hash matches digest.
func (r *Registry) IdentifyBySHA1(ctx context.Context, digest string, contexts ...*index.Context) ([]*artifact.ArtifactInfo, error) {
	q := r.QueryCreator.ConstructQuery(schema.FieldSHA1, digest, search.Exact)
	if q == nil {
		return nil, nil
	}
	res, err := r.SearchEngine.ForceFlatSearch(ctx, search.FlatRequest{Query: q}, contexts...)
	if err != nil {
		return nil, err
	}
	return res.Results.List(), nil
}
