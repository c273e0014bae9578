package index

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idxerrors "github.com/mavenidx/mavenidx/internal/errors"
	"github.com/mavenidx/mavenidx/internal/schema"
)

func TestOpen_FreshContext(t *testing.T) {
	ctx := openTestContext(t, "central")

	assert.Equal(t, 1, countDescriptors(t, ctx))
	assert.NotEmpty(t, ctx.Incarnation())
	assert.True(t, ctx.Timestamp().IsZero())
	assert.True(t, ctx.Searchable())
}

func TestOpen_DirectoryLocked(t *testing.T) {
	dir := t.TempDir()
	first, err := Open(Options{ID: "a", RepositoryID: "a", IndexDir: dir})
	require.NoError(t, err)
	defer func() { _ = first.Close(false) }()

	_, err = Open(Options{ID: "b", RepositoryID: "b", IndexDir: dir})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeDirectoryLock, idxerrors.GetCode(err))
}

func TestOpen_ForeignDescriptor(t *testing.T) {
	dir := t.TempDir()

	first, err := Open(Options{ID: "alpha", RepositoryID: "alpha", IndexDir: dir})
	require.NoError(t, err)
	require.NoError(t, first.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, first.Commit())
	require.NoError(t, first.Close(false))

	// A different repository must be rejected.
	_, err = Open(Options{ID: "beta", RepositoryID: "beta", IndexDir: dir})
	require.Error(t, err)
	assert.Equal(t, idxerrors.ErrCodeUnsupportedIndex, idxerrors.GetCode(err))

	// Unless the caller reclaims the index.
	reclaimed, err := Open(Options{ID: "beta", RepositoryID: "beta", IndexDir: dir, Reclaim: true})
	require.NoError(t, err)
	assert.Equal(t, 1, countDescriptors(t, reclaimed))
	require.NoError(t, reclaimed.Close(false))

	// Once reclaimed, beta owns the index.
	again, err := Open(Options{ID: "beta", RepositoryID: "beta", IndexDir: dir})
	require.NoError(t, err)
	require.NoError(t, again.Close(false))
}

func TestCommit_MakesDocumentsVisible(t *testing.T) {
	ctx := openTestContext(t, "central")
	info := testInfo("org.apache.maven", "maven-model", "2.2.1")

	require.NoError(t, ctx.AddArtifactInfo(info))
	assert.Empty(t, searchKeyword(t, ctx, "g", "org.apache.maven"),
		"staged documents must stay invisible before commit")

	require.NoError(t, ctx.Commit())
	assert.Len(t, searchKeyword(t, ctx, "g", "org.apache.maven"), 1)
	assert.False(t, ctx.Timestamp().IsZero())
}

func TestRollback_DiscardsStagedDocuments(t *testing.T) {
	ctx := openTestContext(t, "central")

	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, ctx.Rollback())
	require.NoError(t, ctx.Commit())

	assert.Zero(t, countLive(t, ctx))
}

func TestDeleteArtifact_LeavesTombstone(t *testing.T) {
	ctx := openTestContext(t, "central")
	info := testInfo("com.example", "app", "1.0")

	require.NoError(t, ctx.AddArtifactInfo(info))
	require.NoError(t, ctx.Commit())
	require.Equal(t, 1, countLive(t, ctx))

	require.NoError(t, ctx.DeleteArtifact(info.UInfo()))
	require.NoError(t, ctx.Commit())

	assert.Zero(t, countLive(t, ctx))
	docs, err := ctx.AllDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, info.UInfo(), docs[0].Get(schema.KeyDeleted))
}

func TestPurge_ResetsStateAndKeepsDescriptor(t *testing.T) {
	ctx := openTestContext(t, "central")
	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, ctx.Commit())
	incarnationBefore := ctx.Incarnation()

	require.NoError(t, ctx.Purge())

	assert.Zero(t, countLive(t, ctx))
	assert.Equal(t, 1, countDescriptors(t, ctx))
	assert.True(t, ctx.Timestamp().IsZero())
	assert.NotEqual(t, incarnationBefore, ctx.Incarnation())

	groups, err := ctx.GetAllGroups()
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDescriptorUniqueness_AcrossOperations(t *testing.T) {
	ctx := openTestContext(t, "central")

	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, ctx.Commit())
	require.NoError(t, ctx.Purge())
	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "2.0")))
	require.NoError(t, ctx.Commit())
	require.NoError(t, ctx.Optimize())
	require.NoError(t, ctx.RebuildGroups())

	assert.Equal(t, 1, countDescriptors(t, ctx))
}

func TestTimestamp_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx, err := Open(Options{ID: "central", RepositoryID: "central", IndexDir: dir})
	require.NoError(t, err)
	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, ctx.Commit())
	stamp := ctx.Timestamp().Format(TimestampLayout)
	require.NoError(t, ctx.Close(false))

	reopened, err := Open(Options{ID: "central", RepositoryID: "central", IndexDir: dir})
	require.NoError(t, err)
	defer func() { _ = reopened.Close(false) }()

	assert.Equal(t, stamp, reopened.Timestamp().Format(TimestampLayout))
}

func TestUpdateTimestamp_NilResets(t *testing.T) {
	ctx := openTestContext(t, "central")
	now := time.Now()
	ctx.UpdateTimestamp(&now)
	assert.False(t, ctx.Timestamp().IsZero())

	ctx.UpdateTimestamp(nil)
	assert.True(t, ctx.Timestamp().IsZero())
}

func TestClose_DeleteFilesWipesDirectory(t *testing.T) {
	dir := t.TempDir()
	ctx, err := Open(Options{ID: "central", RepositoryID: "central", IndexDir: dir})
	require.NoError(t, err)
	require.NoError(t, ctx.Close(true))

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentReadDuringCommit(t *testing.T) {
	ctx := openTestContext(t, "central")
	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "1.0")))
	require.NoError(t, ctx.Commit())

	require.NoError(t, ctx.AddArtifactInfo(testInfo("com.example", "app", "2.0")))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			ids := searchKeyword(t, ctx, "g", "com.example")
			// Every reader sees a consistent snapshot: one doc before the
			// commit lands, two after, never anything in between.
			assert.Contains(t, []int{1, 2}, len(ids))
		}
	}()

	require.NoError(t, ctx.Commit())
	wg.Wait()

	assert.Len(t, searchKeyword(t, ctx, "g", "com.example"), 2)
}
