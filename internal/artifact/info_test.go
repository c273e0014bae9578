package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUInfo_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		info ArtifactInfo
	}{
		{
			name: "plain",
			info: ArtifactInfo{GroupID: "org.apache.maven", ArtifactID: "maven-model", Version: "2.2.1", Extension: "jar"},
		},
		{
			name: "classifier",
			info: ArtifactInfo{GroupID: "com.example", ArtifactID: "app", Version: "1.0", Classifier: "sources", Extension: "jar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uinfo := tt.info.UInfo()

			var back ArtifactInfo
			require.True(t, back.SetFieldsFromUInfo(uinfo))
			assert.Equal(t, tt.info.GroupID, back.GroupID)
			assert.Equal(t, tt.info.ArtifactID, back.ArtifactID)
			assert.Equal(t, tt.info.Version, back.Version)
			assert.Equal(t, tt.info.Classifier, back.Classifier)
			assert.Equal(t, tt.info.Extension, back.Extension)
			assert.Equal(t, uinfo, back.UInfo())
		})
	}
}

func TestUInfo_AbsentClassifierMarker(t *testing.T) {
	info := ArtifactInfo{GroupID: "g", ArtifactID: "a", Version: "1", Extension: "jar"}
	assert.Contains(t, info.UInfo(), NA)

	var back ArtifactInfo
	require.True(t, back.SetFieldsFromUInfo(info.UInfo()))
	assert.Empty(t, back.Classifier)
}

func TestSetFieldsFromUInfo_Malformed(t *testing.T) {
	var ai ArtifactInfo
	assert.False(t, ai.SetFieldsFromUInfo("not-a-uinfo"))
	assert.False(t, ai.SetFieldsFromUInfo(""))
}

func TestRootGroup(t *testing.T) {
	assert.Equal(t, "org", (&ArtifactInfo{GroupID: "org.apache.maven"}).RootGroup())
	assert.Equal(t, "commons-logging", (&ArtifactInfo{GroupID: "commons-logging"}).RootGroup())
}

func TestInfoSet_OrdersAndDeduplicates(t *testing.T) {
	set := NewInfoSet(nil)

	b := &ArtifactInfo{RepositoryID: "r", GroupID: "b.group", ArtifactID: "b", Version: "1", Extension: "jar"}
	a := &ArtifactInfo{RepositoryID: "r", GroupID: "a.group", ArtifactID: "a", Version: "1", Extension: "jar"}
	dup := &ArtifactInfo{RepositoryID: "r", GroupID: "a.group", ArtifactID: "a", Version: "1", Extension: "jar"}
	otherRepo := &ArtifactInfo{RepositoryID: "r2", GroupID: "a.group", ArtifactID: "a", Version: "1", Extension: "jar"}

	assert.True(t, set.Add(b))
	assert.True(t, set.Add(a))
	assert.False(t, set.Add(dup), "same (repositoryId, UINFO) is a duplicate")
	assert.True(t, set.Add(otherRepo), "same UINFO in another repository is distinct")

	require.Equal(t, 3, set.Len())
	list := set.List()
	assert.Equal(t, "a.group", list[0].GroupID)
	assert.Equal(t, "b.group", list[2].GroupID)
}
