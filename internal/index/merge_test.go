package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavenidx/mavenidx/internal/artifact"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// buildSourceDir materialises a closed index directory holding the given
// live infos and tombstones, and returns its bleve directory.
func buildSourceDir(t *testing.T, live []string, tombstones []string) string {
	t.Helper()
	dir := t.TempDir()
	src, err := Open(Options{ID: "source", RepositoryID: "source", IndexDir: dir})
	require.NoError(t, err)
	for _, coords := range live {
		require.NoError(t, src.AddArtifactInfo(testInfo("com.example", coords, "1.0")))
	}
	for _, uinfo := range tombstones {
		require.NoError(t, src.DeleteArtifact(uinfo))
	}
	require.NoError(t, src.Commit())
	blevePath := src.blevePath()
	require.NoError(t, src.Close(false))
	return blevePath
}

func TestMerge_AddsMissingDocuments(t *testing.T) {
	target := openTestContext(t, "central")
	require.NoError(t, target.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, target.Commit())

	source := buildSourceDir(t, []string{"app", "other"}, nil)
	require.NoError(t, target.Merge(source, nil))

	// "app" was present and is skipped; "other" is added.
	assert.Equal(t, 2, countLive(t, target))
	assert.Equal(t, 1, countDescriptors(t, target))

	groups, err := target.GetAllGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example"}, groups)
}

func TestMerge_FilterRejects(t *testing.T) {
	target := openTestContext(t, "central")
	source := buildSourceDir(t, []string{"keep", "drop"}, nil)

	require.NoError(t, target.Merge(source, func(ai *artifact.ArtifactInfo) bool {
		return ai.ArtifactID != "drop"
	}))
	assert.Equal(t, 1, countLive(t, target))
}

func TestMerge_TombstoneDeletesTarget(t *testing.T) {
	target := openTestContext(t, "central")
	x := testInfo("com.example", "x", "1.0")
	require.NoError(t, target.AddArtifactInfo(x))
	require.NoError(t, target.Commit())

	source := buildSourceDir(t, nil, []string{x.UInfo()})
	require.NoError(t, target.Merge(source, nil))

	// No live document matches X, and the tombstone itself is persisted.
	assert.Zero(t, countLive(t, target))
	docs, err := target.AllDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, x.UInfo(), docs[0].Get(schema.KeyDeleted))
}

func TestMerge_Idempotent(t *testing.T) {
	target := openTestContext(t, "central")
	source := buildSourceDir(t, []string{"a", "b"}, nil)

	require.NoError(t, target.Merge(source, nil))
	require.NoError(t, target.Merge(source, nil))

	assert.Equal(t, 2, countLive(t, target))
}

func TestReplace_AdoptsSourceState(t *testing.T) {
	target := openTestContext(t, "central")
	require.NoError(t, target.AddArtifactInfo(testInfo("com.example", "old", "1.0")))
	require.NoError(t, target.Commit())
	incarnationBefore := target.Incarnation()

	source := buildSourceDir(t, []string{"fresh"}, nil)
	require.NoError(t, target.Replace(source))

	assert.Equal(t, 1, countLive(t, target))
	assert.Len(t, searchKeyword(t, target, "a", "fresh"), 1)
	assert.Empty(t, searchKeyword(t, target, "a", "old"))
	assert.NotEqual(t, incarnationBefore, target.Incarnation())
	assert.False(t, target.Timestamp().IsZero(), "source timestamp is adopted")
}
