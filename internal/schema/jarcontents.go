package schema

import (
	"archive/zip"
	"strings"

	"github.com/mavenidx/mavenidx/internal/artifact"
)

// JarFileContentsIndexCreator enumerates the class entries of jar-like
// artifacts and indexes them as slash-separated fully-qualified names.
type JarFileContentsIndexCreator struct{}

// NewJarFileContentsIndexCreator creates the jar-contents creator.
func NewJarFileContentsIndexCreator() *JarFileContentsIndexCreator {
	return &JarFileContentsIndexCreator{}
}

// ID implements IndexCreator.
func (c *JarFileContentsIndexCreator) ID() string { return "jarContent" }

// Fields implements IndexCreator.
func (c *JarFileContentsIndexCreator) Fields() []IndexerField {
	return FieldClassNames.Variants
}

// jarLikeExtensions are artifact types opened as zip archives.
var jarLikeExtensions = map[string]struct{}{
	"jar": {}, "war": {}, "ear": {}, "zip": {}, "aar": {},
}

// Populate implements IndexCreator.
func (c *JarFileContentsIndexCreator) Populate(ac *artifact.Context) error {
	if _, ok := jarLikeExtensions[ac.Info.Extension]; !ok {
		return nil
	}

	r, err := zip.OpenReader(ac.ArtifactPath)
	if err != nil {
		// Not a readable zip: index the coordinate, skip the contents.
		ac.AddError(err)
		return nil
	}
	defer r.Close()

	var sb strings.Builder
	for _, f := range r.File {
		name := f.Name
		if !strings.HasSuffix(name, ".class") {
			continue
		}
		// Inner classes stay; synthetic war prefixes do not.
		name = strings.TrimPrefix(name, "WEB-INF/classes/")
		name = strings.TrimSuffix(name, ".class")
		if name == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteByte('/')
		sb.WriteString(name)
	}
	ac.Info.ClassNames = sb.String()
	return nil
}

// UpdateDocument implements IndexCreator.
func (c *JarFileContentsIndexCreator) UpdateDocument(ai *artifact.ArtifactInfo, doc Document) {
	if ai.ClassNames == "" {
		return
	}
	doc["classnames"] = ai.ClassNames
	doc["classnames_kw"] = ai.ClassNames
}

// UpdateArtifactInfo implements IndexCreator.
func (c *JarFileContentsIndexCreator) UpdateArtifactInfo(doc Document, ai *artifact.ArtifactInfo) bool {
	names := doc.Get("classnames")
	if names == "" {
		return false
	}
	ai.ClassNames = names
	return true
}
