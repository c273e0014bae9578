package index

import (
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/require"

	"github.com/mavenidx/mavenidx/internal/artifact"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// openTestContext opens a context over a fresh temp directory.
func openTestContext(t *testing.T, repositoryID string) *Context {
	t.Helper()
	ctx, err := Open(Options{
		ID:           repositoryID,
		RepositoryID: repositoryID,
		IndexDir:     t.TempDir(),
		Searchable:   true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctx.Close(false) })
	return ctx
}

// testInfo builds a plausible ArtifactInfo without touching disk.
func testInfo(groupID, artifactID, version string) *artifact.ArtifactInfo {
	return &artifact.ArtifactInfo{
		GroupID:      groupID,
		ArtifactID:   artifactID,
		Version:      version,
		Packaging:    "jar",
		Extension:    "jar",
		FName:        artifactID + "-" + version + ".jar",
		Size:         1024,
		LastModified: time.Now().UnixMilli(),
	}
}

// countLive returns the number of live artifact documents.
func countLive(t *testing.T, ctx *Context) int {
	t.Helper()
	docs, err := ctx.AllDocuments()
	require.NoError(t, err)
	live := 0
	for _, doc := range docs {
		if doc.Has(schema.KeyUInfo) && !doc.Has(schema.KeyDeleted) {
			live++
		}
	}
	return live
}

// countDescriptors counts documents carrying the descriptor marker.
func countDescriptors(t *testing.T, ctx *Context) int {
	t.Helper()
	q := bleve.NewTermQuery(schema.DescriptorValue)
	q.SetField(schema.KeyDescriptor)
	req := bleve.NewSearchRequestOptions(q, 10, 0, false)

	ctx.Lock()
	defer ctx.Unlock()
	res, err := ctx.Index().Search(req)
	require.NoError(t, err)
	return int(res.Total)
}

// searchKeyword runs a raw keyword term query, returning the matching ids.
func searchKeyword(t *testing.T, ctx *Context, key, term string) []string {
	t.Helper()
	q := bleve.NewTermQuery(term)
	q.SetField(key)
	req := bleve.NewSearchRequestOptions(q, 100, 0, false)

	ctx.Lock()
	defer ctx.Unlock()
	res, err := ctx.Index().Search(req)
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids
}
