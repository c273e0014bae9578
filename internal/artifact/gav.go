package artifact

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Gav is a parsed Maven2 coordinate.
type Gav struct {
	GroupID     string
	ArtifactID  string
	Version     string
	BaseVersion string
	Classifier  string
	Extension   string

	Snapshot          bool
	SnapshotTimestamp string // YYYYMMDD.HHMMSS for timestamped snapshots
	SnapshotBuild     int
}

// snapshotSuffix is the literal version suffix marking snapshot builds.
const snapshotSuffix = "-SNAPSHOT"

// timestampedRe matches the -<YYYYMMDD.HHMMSS>-<buildNumber> tail of a
// deployed snapshot file name.
var timestampedRe = regexp.MustCompile(`^([0-9]{8}\.[0-9]{6})-([0-9]+)$`)

// knownExtensions is checked longest-suffix-first when splitting a file
// name, so tar.gz wins over gz.
var knownExtensions = []string{
	"tar.gz", "tar.bz2",
	"jar", "war", "ear", "aar", "rar", "pom", "zip", "swc", "nar",
	"so", "dll", "dylib",
}

// M2GavCalculator is a pure bidirectional mapping between a Maven2
// repository path and a Gav.
type M2GavCalculator struct{}

// Path computes the repository-relative path for a Gav.
func (M2GavCalculator) Path(gav *Gav) string {
	var sb strings.Builder
	sb.WriteString(strings.ReplaceAll(gav.GroupID, ".", "/"))
	sb.WriteByte('/')
	sb.WriteString(gav.ArtifactID)
	sb.WriteByte('/')
	sb.WriteString(gav.BaseVersion)
	sb.WriteByte('/')
	sb.WriteString(gav.ArtifactID)
	sb.WriteByte('-')
	sb.WriteString(gav.Version)
	if gav.Classifier != "" {
		sb.WriteByte('-')
		sb.WriteString(gav.Classifier)
	}
	sb.WriteByte('.')
	sb.WriteString(gav.Extension)
	return sb.String()
}

// Gav parses a repository-relative path. Paths that do not follow the
// Maven2 artifact grammar (metadata, checksums, strays) return an error.
func (M2GavCalculator) Gav(path string) (*Gav, error) {
	path = strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "/")
	segments := strings.Split(path, "/")
	if len(segments) < 4 {
		return nil, fmt.Errorf("path %q has too few segments for a maven2 layout", path)
	}

	fileName := segments[len(segments)-1]
	baseVersion := segments[len(segments)-2]
	artifactID := segments[len(segments)-3]
	groupID := strings.Join(segments[:len(segments)-3], ".")

	prefix := artifactID + "-"
	if !strings.HasPrefix(fileName, prefix) {
		return nil, fmt.Errorf("file %q does not start with artifactId %q", fileName, artifactID)
	}
	rest := fileName[len(prefix):]

	rest, ext, ok := splitExtension(rest)
	if !ok {
		return nil, fmt.Errorf("file %q has no extension", fileName)
	}

	gav := &Gav{
		GroupID:     groupID,
		ArtifactID:  artifactID,
		BaseVersion: baseVersion,
		Extension:   ext,
	}

	if strings.HasSuffix(baseVersion, snapshotSuffix) {
		if err := parseSnapshotVersion(gav, rest, baseVersion); err != nil {
			return nil, err
		}
		return gav, nil
	}

	if !strings.HasPrefix(rest, baseVersion) {
		return nil, fmt.Errorf("file %q does not carry version %q", fileName, baseVersion)
	}
	gav.Version = baseVersion
	if tail := rest[len(baseVersion):]; tail != "" {
		if !strings.HasPrefix(tail, "-") {
			return nil, fmt.Errorf("unexpected text %q between version and extension", tail)
		}
		gav.Classifier = tail[1:]
	}
	return gav, nil
}

// parseSnapshotVersion handles both vanilla X-SNAPSHOT file names and
// deployed timestamped ones (X-YYYYMMDD.HHMMSS-N).
func parseSnapshotVersion(gav *Gav, rest, baseVersion string) error {
	gav.Snapshot = true
	stem := strings.TrimSuffix(baseVersion, snapshotSuffix)

	if strings.HasPrefix(rest, baseVersion) {
		gav.Version = baseVersion
		if tail := rest[len(baseVersion):]; tail != "" {
			if !strings.HasPrefix(tail, "-") {
				return fmt.Errorf("unexpected text %q after snapshot version", tail)
			}
			gav.Classifier = tail[1:]
		}
		return nil
	}

	prefix := stem + "-"
	if !strings.HasPrefix(rest, prefix) {
		return fmt.Errorf("snapshot file does not carry base version %q", baseVersion)
	}
	tail := rest[len(prefix):]

	// Timestamp and build number, then optionally a classifier.
	fields := strings.SplitN(tail, "-", 3)
	if len(fields) < 2 {
		return fmt.Errorf("snapshot file %q lacks a timestamp-build tail", rest)
	}
	tsBuild := fields[0] + "-" + fields[1]
	m := timestampedRe.FindStringSubmatch(tsBuild)
	if m == nil {
		return fmt.Errorf("snapshot tail %q is not YYYYMMDD.HHMMSS-N", tsBuild)
	}
	build, err := strconv.Atoi(m[2])
	if err != nil {
		return fmt.Errorf("snapshot build number: %w", err)
	}
	gav.Version = stem + "-" + tsBuild
	gav.SnapshotTimestamp = m[1]
	gav.SnapshotBuild = build
	if len(fields) == 3 {
		gav.Classifier = fields[2]
	}
	return nil
}

// splitExtension strips the longest known .<ext> suffix; an unknown single
// suffix after the last dot is accepted as a fallback.
func splitExtension(name string) (stem, ext string, ok bool) {
	for _, known := range knownExtensions {
		suffix := "." + known
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return name[:len(name)-len(suffix)], known, true
		}
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 && i < len(name)-1 {
		return name[:i], name[i+1:], true
	}
	return "", "", false
}
