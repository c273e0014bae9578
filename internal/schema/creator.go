package schema

import (
	"github.com/mavenidx/mavenidx/internal/artifact"
)

// IndexCreator is a schema plug-in. Each creator owns a set of
// IndexerFields, computes them from the on-disk artifact, writes them into
// a document, and reads them back into an ArtifactInfo.
//
// The creator chain is ordered: Populate and UpdateDocument run in
// declaration order, UpdateArtifactInfo reduces over all creators and the
// final stored document is the merge of all contributions.
type IndexCreator interface {
	// ID names the creator.
	ID() string

	// Fields lists the IndexerFields this creator owns.
	Fields() []IndexerField

	// Populate computes the creator's fields from the on-disk artifact.
	Populate(ac *artifact.Context) error

	// UpdateDocument writes the creator's fields into doc.
	UpdateDocument(ai *artifact.ArtifactInfo, doc Document)

	// UpdateArtifactInfo reads the creator's fields back from doc.
	// It reports whether any owned field was recognised.
	UpdateArtifactInfo(doc Document, ai *artifact.ArtifactInfo) bool
}

// DefaultCreators returns the mandatory creator chain, in order.
func DefaultCreators() []IndexCreator {
	return []IndexCreator{
		NewMinimalArtifactInfoIndexCreator(),
		NewJarFileContentsIndexCreator(),
	}
}

// PopulateAll runs every creator's Populate in order.
func PopulateAll(creators []IndexCreator, ac *artifact.Context) {
	for _, c := range creators {
		if err := c.Populate(ac); err != nil {
			ac.AddError(err)
		}
	}
}

// BuildDocument merges every creator's field contributions for ai.
func BuildDocument(creators []IndexCreator, ai *artifact.ArtifactInfo) Document {
	doc := Document{}
	for _, c := range creators {
		c.UpdateDocument(ai, doc)
	}
	return doc
}

// ReadDocument reconstitutes an ArtifactInfo from a stored document.
// Returns nil when no creator recognises any field (descriptor, group and
// tombstone documents).
func ReadDocument(creators []IndexCreator, doc Document) *artifact.ArtifactInfo {
	ai := &artifact.ArtifactInfo{}
	recognised := false
	for _, c := range creators {
		if c.UpdateArtifactInfo(doc, ai) {
			recognised = true
		}
	}
	if !recognised {
		return nil
	}
	return ai
}
