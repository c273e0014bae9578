package search

import (
	"github.com/mavenidx/mavenidx/internal/artifact"
)

// ArtifactInfoGroup is one bucket of a grouped search result.
type ArtifactInfoGroup struct {
	Key   string
	Infos []*artifact.ArtifactInfo
}

// Grouping folds artifacts into keyed buckets. Put returns false to reject
// a hit; rejected hits are not counted.
type Grouping interface {
	Put(result map[string]*ArtifactInfoGroup, ai *artifact.ArtifactInfo) bool
}

// GGrouping groups hits by groupId.
type GGrouping struct{}

// Put implements Grouping.
func (GGrouping) Put(result map[string]*ArtifactInfoGroup, ai *artifact.ArtifactInfo) bool {
	return put(result, ai.GroupID, ai)
}

// GAGrouping groups hits by groupId:artifactId.
type GAGrouping struct{}

// Put implements Grouping.
func (GAGrouping) Put(result map[string]*ArtifactInfoGroup, ai *artifact.ArtifactInfo) bool {
	return put(result, ai.GroupID+":"+ai.ArtifactID, ai)
}

func put(result map[string]*ArtifactInfoGroup, key string, ai *artifact.ArtifactInfo) bool {
	if key == "" {
		return false
	}
	group, ok := result[key]
	if !ok {
		group = &ArtifactInfoGroup{Key: key}
		result[key] = group
	}
	group.Infos = append(group.Infos, ai)
	return true
}
