package artifact

import (
	"os"
)

// Context carries one on-disk artifact through the indexing pipeline:
// the scanner fills in the location and Gav, the index creators populate
// the ArtifactInfo from the file contents.
type Context struct {
	// ArtifactPath is the absolute path of the artifact file.
	ArtifactPath string

	// RelPath is the repository-relative path the Gav was parsed from.
	RelPath string

	// Gav is the parsed coordinate.
	Gav *Gav

	// Info is the record under population.
	Info *ArtifactInfo

	// SHA1 and MD5 carry scanner-precomputed checksums so creators skip
	// re-hashing unchanged files.
	SHA1 string
	MD5  string

	// Errors collects non-fatal per-creator population failures.
	Errors []error
}

// NewContext builds a Context for a parsed artifact and seeds the
// ArtifactInfo identity fields from the Gav.
func NewContext(repositoryID, artifactPath, relPath string, gav *Gav) *Context {
	info := &ArtifactInfo{
		GroupID:      gav.GroupID,
		ArtifactID:   gav.ArtifactID,
		Version:      gav.Version,
		Classifier:   gav.Classifier,
		Extension:    gav.Extension,
		Packaging:    gav.Extension,
		RepositoryID: repositoryID,
	}
	return &Context{
		ArtifactPath: artifactPath,
		RelPath:      relPath,
		Gav:          gav,
		Info:         info,
	}
}

// AddError records a non-fatal population failure.
func (c *Context) AddError(err error) {
	if err != nil {
		c.Errors = append(c.Errors, err)
	}
}

// Stat returns the file info of the artifact, or nil if it is gone.
func (c *Context) Stat() os.FileInfo {
	fi, err := os.Stat(c.ArtifactPath)
	if err != nil {
		return nil
	}
	return fi
}
