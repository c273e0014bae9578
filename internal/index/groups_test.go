package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebuildGroups(t *testing.T) {
	ctx := openTestContext(t, "central")
	require.NoError(t, ctx.AddArtifactInfo(testInfo("org.apache.maven", "maven-model", "2.2.1")))
	require.NoError(t, ctx.AddArtifactInfo(testInfo("org.apache.ant", "ant", "1.8.0")))
	require.NoError(t, ctx.AddArtifactInfo(testInfo("commons-logging", "commons-logging", "1.1.1")))
	require.NoError(t, ctx.Commit())

	require.NoError(t, ctx.RebuildGroups())

	all, err := ctx.GetAllGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"commons-logging", "org.apache.ant", "org.apache.maven"}, all)

	roots, err := ctx.GetRootGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"commons-logging", "org"}, roots)
}

func TestGroups_EmptyBeforeRebuild(t *testing.T) {
	ctx := openTestContext(t, "central")
	groups, err := ctx.GetAllGroups()
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestSetGroups_RoundTrip(t *testing.T) {
	ctx := openTestContext(t, "central")
	require.NoError(t, ctx.SetAllGroups([]string{"com.example", "org.example"}))
	require.NoError(t, ctx.SetRootGroups([]string{"com", "org"}))

	all, err := ctx.GetAllGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"com.example", "org.example"}, all)

	roots, err := ctx.GetRootGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"com", "org"}, roots)
}

func TestRebuildGroups_IgnoresTombstones(t *testing.T) {
	ctx := openTestContext(t, "central")
	info := testInfo("com.example", "app", "1.0")
	require.NoError(t, ctx.AddArtifactInfo(info))
	require.NoError(t, ctx.Commit())
	require.NoError(t, ctx.DeleteArtifact(info.UInfo()))
	require.NoError(t, ctx.Commit())

	require.NoError(t, ctx.RebuildGroups())
	all, err := ctx.GetAllGroups()
	require.NoError(t, err)
	assert.Empty(t, all)
}
