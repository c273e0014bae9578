package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mavenidx/mavenidx/internal/artifact"
	"github.com/mavenidx/mavenidx/internal/index"
	"github.com/mavenidx/mavenidx/internal/schema"
)

// openTestContext opens a searchable context over a temp directory.
func openTestContext(t *testing.T, repositoryID string) *index.Context {
	t.Helper()
	ictx, err := index.Open(index.Options{
		ID:           repositoryID,
		RepositoryID: repositoryID,
		IndexDir:     t.TempDir(),
		Searchable:   true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ictx.Close(false) })
	return ictx
}

// commitInfos stages and commits the given artifacts.
func commitInfos(t *testing.T, ictx *index.Context, infos ...*artifact.ArtifactInfo) {
	t.Helper()
	for _, ai := range infos {
		require.NoError(t, ictx.AddArtifactInfo(ai))
	}
	require.NoError(t, ictx.Commit())
}

// testInfo builds a plausible ArtifactInfo.
func testInfo(groupID, artifactID, version string) *artifact.ArtifactInfo {
	return &artifact.ArtifactInfo{
		GroupID:      groupID,
		ArtifactID:   artifactID,
		Version:      version,
		Packaging:    "jar",
		Extension:    "jar",
		FName:        artifactID + "-" + version + ".jar",
		Size:         2048,
		LastModified: time.Now().UnixMilli(),
	}
}

func TestFlatSearch_SingleArtifactRoundTrip(t *testing.T) {
	ictx := openTestContext(t, "central")
	commitInfos(t, ictx, testInfo("org.apache.maven", "maven-model", "2.2.1"))

	qc := NewQueryCreator()
	engine := NewEngine()

	q := qc.ConstructQuery(schema.FieldGroupID, "org.apache.maven", Exact)
	require.NotNil(t, q)

	res, err := engine.FlatSearch(context.Background(), FlatRequest{Query: q}, ictx)
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalHits)

	list := res.Results.List()
	require.Len(t, list, 1)
	assert.Equal(t, "maven-model", list[0].ArtifactID)
	assert.Equal(t, "2.2.1", list[0].Version)
	assert.Equal(t, "jar", list[0].Packaging)
	assert.Equal(t, "central", list[0].RepositoryID)
}

func TestFlatSearch_WildcardNormalisation(t *testing.T) {
	ictx := openTestContext(t, "central")
	commitInfos(t, ictx,
		testInfo("commons-logging", "commons-logging", "1.1.1"),
		testInfo("log4j", "log4j", "1.2.17"),
	)

	qc := NewQueryCreator()
	engine := NewEngine()

	q := qc.ConstructQuery(schema.FieldArtifactID, "common-log*", Scored)
	require.NotNil(t, q)

	res, err := engine.FlatSearch(context.Background(), FlatRequest{Query: q}, ictx)
	require.NoError(t, err)

	list := res.Results.List()
	require.Len(t, list, 1, "common-log* matches commons-logging and nothing else")
	assert.Equal(t, "commons-logging", list[0].ArtifactID)
}

func TestFlatSearch_OrderedAndDeduplicated(t *testing.T) {
	// Two contexts of the same repository holding one shared artifact.
	a := openTestContext(t, "central")
	b := openTestContext(t, "central")
	shared := testInfo("com.example", "shared", "1.0")
	commitInfos(t, a, testInfo("com.zeta", "zzz", "1.0"), shared)
	commitInfos(t, b, testInfo("com.alpha", "aaa", "1.0"), testInfo("com.example", "shared", "1.0"))

	qc := NewQueryCreator()
	engine := NewEngine()
	q := qc.ConstructQuery(schema.FieldPackaging, "jar", Exact)

	res, err := engine.FlatSearch(context.Background(), FlatRequest{Query: q}, a, b)
	require.NoError(t, err)

	list := res.Results.List()
	require.Len(t, list, 3, "the shared artifact appears once")
	// UINFO ascending.
	assert.Equal(t, "aaa", list[0].ArtifactID)
	assert.Equal(t, "shared", list[1].ArtifactID)
	assert.Equal(t, "zzz", list[2].ArtifactID)
}

func TestFlatSearch_HitLimit(t *testing.T) {
	ictx := openTestContext(t, "central")
	commitInfos(t, ictx,
		testInfo("com.example", "a", "1.0"),
		testInfo("com.example", "b", "1.0"),
		testInfo("com.example", "c", "1.0"),
	)

	qc := NewQueryCreator()
	engine := NewEngine()
	q := qc.ConstructQuery(schema.FieldGroupID, "com.example", Exact)

	res, err := engine.FlatSearch(context.Background(), FlatRequest{Query: q, ResultHitLimit: 2}, ictx)
	require.NoError(t, err)
	assert.Equal(t, LimitExceeded, res.TotalHits)
	assert.Zero(t, res.Results.Len(), "an exceeded limit returns an empty set")
}

func TestFlatSearch_SkipsUnsearchableContexts(t *testing.T) {
	ictx := openTestContext(t, "central")
	commitInfos(t, ictx, testInfo("com.example", "app", "1.0"))
	ictx.SetSearchable(false)

	qc := NewQueryCreator()
	engine := NewEngine()
	q := qc.ConstructQuery(schema.FieldGroupID, "com.example", Exact)

	res, err := engine.FlatSearch(context.Background(), FlatRequest{Query: q}, ictx)
	require.NoError(t, err)
	assert.Zero(t, res.TotalHits)

	forced, err := engine.ForceFlatSearch(context.Background(), FlatRequest{Query: q}, ictx)
	require.NoError(t, err)
	assert.Equal(t, 1, forced.TotalHits)
}

func TestGroupedSearch_ByGroupID(t *testing.T) {
	ictx := openTestContext(t, "central")
	commitInfos(t, ictx,
		testInfo("com.example", "a", "1.0"),
		testInfo("com.example", "b", "1.0"),
		testInfo("org.example", "c", "1.0"),
	)

	qc := NewQueryCreator()
	engine := NewEngine()
	q := qc.ConstructQuery(schema.FieldPackaging, "jar", Exact)

	groups, count, err := engine.GroupedSearch(context.Background(), GroupedRequest{
		Query:    q,
		Grouping: GGrouping{},
	}, ictx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, groups, 2)
	assert.Len(t, groups["com.example"].Infos, 2)
	assert.Len(t, groups["org.example"].Infos, 1)
}

func TestIteratorSearch_StreamsWithBounds(t *testing.T) {
	ictx := openTestContext(t, "central")
	commitInfos(t, ictx,
		testInfo("com.example", "a", "1.0"),
		testInfo("com.example", "b", "1.0"),
		testInfo("com.example", "c", "1.0"),
	)

	qc := NewQueryCreator()
	engine := NewEngine()
	q := qc.ConstructQuery(schema.FieldGroupID, "com.example", Exact)

	it, err := engine.IteratorSearch(context.Background(), IteratorRequest{
		Query: q,
		Start: 1,
		Count: 1,
	}, ictx)
	require.NoError(t, err)

	first, err := it.Next()
	require.NoError(t, err)
	require.NotNil(t, first)

	done, err := it.Next()
	require.NoError(t, err)
	assert.Nil(t, done, "count bound makes the cursor single-yield")

	it.Close()
	_, err = it.Next()
	assert.Error(t, err, "a closed cursor refuses further reads")

	// The shared locks are released: an exclusive operation proceeds.
	require.NoError(t, ictx.RebuildGroups())
}

func TestIteratorSearch_DrainsAllContexts(t *testing.T) {
	a := openTestContext(t, "repo-a")
	b := openTestContext(t, "repo-b")
	commitInfos(t, a, testInfo("com.example", "a", "1.0"))
	commitInfos(t, b, testInfo("com.example", "b", "1.0"))

	qc := NewQueryCreator()
	engine := NewEngine()
	q := qc.ConstructQuery(schema.FieldGroupID, "com.example", Exact)

	it, err := engine.IteratorSearch(context.Background(), IteratorRequest{Query: q}, a, b)
	require.NoError(t, err)
	defer it.Close()

	var seen []string
	for {
		ai, err := it.Next()
		require.NoError(t, err)
		if ai == nil {
			break
		}
		seen = append(seen, ai.RepositoryID+":"+ai.ArtifactID)
	}
	assert.Equal(t, []string{"repo-a:a", "repo-b:b"}, seen)
}
